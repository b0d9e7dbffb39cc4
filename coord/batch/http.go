package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/qcoptim/parallel-optim/coord"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EvaluatePath is the endpoint every job is POSTed to.
const EvaluatePath = "/v1/evaluate"

// JobRequest is the wire body of one executor job.
type JobRequest struct {
	Requests []WireRequest `json:"requests"`
}

// WireRequest is one encoded request on the wire.
type WireRequest struct {
	Name   string            `json:"name"`
	Params []float64         `json:"params"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// JobResponse carries the raw values of a job keyed by request name.
type JobResponse struct {
	Results map[string][]float64 `json:"results"`
}

// HTTPExecutor sends jobs to a remote evaluation service.
type HTTPExecutor struct {
	baseURL    string
	apiKey     string
	capacity   int
	workers    int
	metrics    *Metrics
	httpClient *http.Client
	jobs       *jobStore
}

// NewHTTPExecutor creates an executor for the service at baseURL. apiKey and
// metrics are optional.
func NewHTTPExecutor(baseURL, apiKey string, capacity, workers int, metrics *Metrics) *HTTPExecutor {
	if capacity < 1 {
		capacity = coord.DefaultExecutorBatchCapacity
	}
	return &HTTPExecutor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		capacity:   capacity,
		workers:    workers,
		metrics:    metrics,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		jobs:       newJobStore("http"),
	}
}

// Submit implements coord.Executor.
func (e *HTTPExecutor) Submit(_ context.Context, reqs []coord.EncodedRequest) (coord.BatchHandle, error) {
	return e.jobs.submit(reqs), nil
}

// Execute implements coord.Executor.
func (e *HTTPExecutor) Execute(ctx context.Context, h coord.BatchHandle) error {
	reqs, err := e.jobs.take(h)
	if err != nil {
		return err
	}
	jobs := chunk(reqs, e.capacity)
	logrus.Debugf("http executor: batch %s, %d requests in %d jobs to %s", h, len(reqs), len(jobs), e.baseURL)
	raw, err := runJobs(ctx, jobs, e.workers, e.metrics, e.send)
	if err != nil {
		return err
	}
	e.jobs.store(h, raw)
	return nil
}

// Results implements coord.Executor.
func (e *HTTPExecutor) Results(h coord.BatchHandle) (coord.RawResults, error) {
	return e.jobs.fetch(h)
}

func (e *HTTPExecutor) send(ctx context.Context, reqs []coord.EncodedRequest) (coord.RawResults, error) {
	body := JobRequest{Requests: make([]WireRequest, len(reqs))}
	for i, r := range reqs {
		body.Requests[i] = WireRequest{Name: r.Name, Params: r.Params, Meta: r.Meta}
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+EvaluatePath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("request creation error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out JobResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	for _, r := range reqs {
		if _, ok := out.Results[r.Name]; !ok {
			return nil, fmt.Errorf("response is missing request %s", r.Name)
		}
	}
	return coord.RawResults(out.Results), nil
}
