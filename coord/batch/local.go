package batch

import (
	"context"
	"fmt"

	"github.com/qcoptim/parallel-optim/coord"
	"github.com/sirupsen/logrus"
)

// EvalFunc evaluates one encoded request in-process.
type EvalFunc func(ctx context.Context, req coord.EncodedRequest) ([]float64, error)

// LocalExecutor evaluates requests in-process, splitting each batch into
// jobs of at most Capacity requests run on Workers goroutines.
type LocalExecutor struct {
	eval     EvalFunc
	capacity int
	workers  int
	metrics  *Metrics
	jobs     *jobStore
}

// NewLocalExecutor creates a LocalExecutor. metrics may be nil.
func NewLocalExecutor(eval EvalFunc, capacity, workers int, metrics *Metrics) *LocalExecutor {
	if capacity < 1 {
		capacity = coord.DefaultExecutorBatchCapacity
	}
	return &LocalExecutor{eval: eval, capacity: capacity, workers: workers, metrics: metrics, jobs: newJobStore("local")}
}

// Submit implements coord.Executor.
func (e *LocalExecutor) Submit(_ context.Context, reqs []coord.EncodedRequest) (coord.BatchHandle, error) {
	return e.jobs.submit(reqs), nil
}

// Execute implements coord.Executor.
func (e *LocalExecutor) Execute(ctx context.Context, h coord.BatchHandle) error {
	reqs, err := e.jobs.take(h)
	if err != nil {
		return err
	}
	jobs := chunk(reqs, e.capacity)
	logrus.Debugf("local executor: batch %s, %d requests in %d jobs", h, len(reqs), len(jobs))
	raw, err := runJobs(ctx, jobs, e.workers, e.metrics, e.runJob)
	if err != nil {
		return err
	}
	e.jobs.store(h, raw)
	return nil
}

// Results implements coord.Executor.
func (e *LocalExecutor) Results(h coord.BatchHandle) (coord.RawResults, error) {
	return e.jobs.fetch(h)
}

func (e *LocalExecutor) runJob(ctx context.Context, reqs []coord.EncodedRequest) (coord.RawResults, error) {
	raw := make(coord.RawResults, len(reqs))
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.eval(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", r.Name, err)
		}
		raw[r.Name] = v
	}
	return raw, nil
}
