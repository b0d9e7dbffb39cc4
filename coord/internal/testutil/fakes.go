// Package testutil provides shared test doubles for the coord packages:
// a recording optimizer, a deterministic cost model and an in-memory executor.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/qcoptim/parallel-optim/coord"
)

// RecordingOptimizer proposes points from a function and records everything
// it is fed.
type RecordingOptimizer struct {
	ProposeFunc func(call int) []float64
	ProposeErr  error
	ObserveErr  error
	RefitErr    error

	Proposals int
	Points    [][]float64
	Values    []float64
	Refits    int
	// ObserveCalls counts Observe invocations; a batched round makes one.
	ObserveCalls int
}

// NewRecordingOptimizer returns an optimizer proposing base+call on every axis.
func NewRecordingOptimizer(dim int, base float64) *RecordingOptimizer {
	return &RecordingOptimizer{
		ProposeFunc: func(call int) []float64 {
			x := make([]float64, dim)
			for i := range x {
				x[i] = coord.WrapAngle(base + 0.1*float64(call))
			}
			return x
		},
	}
}

// Propose implements coord.Optimizer.
func (o *RecordingOptimizer) Propose() ([]float64, error) {
	if o.ProposeErr != nil {
		return nil, o.ProposeErr
	}
	x := o.ProposeFunc(o.Proposals)
	o.Proposals++
	return x, nil
}

// Observe implements coord.Optimizer.
func (o *RecordingOptimizer) Observe(points [][]float64, values []float64) error {
	if o.ObserveErr != nil {
		return o.ObserveErr
	}
	o.ObserveCalls++
	o.Points = append(o.Points, points...)
	o.Values = append(o.Values, values...)
	return nil
}

// Refit implements coord.Optimizer.
func (o *RecordingOptimizer) Refit() error {
	if o.RefitErr != nil {
		return o.RefitErr
	}
	o.Refits++
	return nil
}

// SumCost encodes a point into PerPoint requests named "<token>/<k>" and
// decodes the sum of their first raw values plus Bias.
type SumCost struct {
	D        int
	PerPoint int
	Bias     float64
}

// Dim implements coord.CostModel.
func (c SumCost) Dim() int { return c.D }

// Encode implements coord.CostModel.
func (c SumCost) Encode(x []float64, id coord.Token) ([]coord.EncodedRequest, error) {
	if len(x) != c.D {
		return nil, fmt.Errorf("point has %d coordinates, want %d", len(x), c.D)
	}
	per := c.PerPoint
	if per < 1 {
		per = 1
	}
	reqs := make([]coord.EncodedRequest, per)
	for k := range reqs {
		reqs[k] = coord.EncodedRequest{ID: id, Name: fmt.Sprintf("%s/%d", id, k), Params: x}
	}
	return reqs, nil
}

// Decode implements coord.CostModel.
func (c SumCost) Decode(raw coord.RawResults, id coord.Token) (float64, error) {
	per := c.PerPoint
	if per < 1 {
		per = 1
	}
	sum := c.Bias
	for k := 0; k < per; k++ {
		v, ok := raw.Get(fmt.Sprintf("%s/%d", id, k))
		if !ok || len(v) == 0 {
			return 0, fmt.Errorf("missing raw result %s/%d", id, k)
		}
		sum += v[0]
	}
	return sum, nil
}

// MapExecutor evaluates every request with Eval in memory.
type MapExecutor struct {
	Eval       func(req coord.EncodedRequest) float64
	SubmitErr  error
	ExecuteErr error

	mu      sync.Mutex
	batches map[coord.BatchHandle][]coord.EncodedRequest
	results map[coord.BatchHandle]coord.RawResults
	next    int
	// Submitted counts requests across all batches.
	Submitted int
}

// NewMapExecutor returns an executor whose raw value is the sum of a
// request's parameters.
func NewMapExecutor() *MapExecutor {
	return &MapExecutor{Eval: func(req coord.EncodedRequest) float64 {
		var s float64
		for _, p := range req.Params {
			s += p
		}
		return s
	}}
}

// Submit implements coord.Executor.
func (e *MapExecutor) Submit(ctx context.Context, reqs []coord.EncodedRequest) (coord.BatchHandle, error) {
	if e.SubmitErr != nil {
		return "", e.SubmitErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.batches == nil {
		e.batches = make(map[coord.BatchHandle][]coord.EncodedRequest)
		e.results = make(map[coord.BatchHandle]coord.RawResults)
	}
	e.next++
	h := coord.BatchHandle(fmt.Sprintf("batch-%d", e.next))
	e.batches[h] = reqs
	e.Submitted += len(reqs)
	return h, nil
}

// Execute implements coord.Executor.
func (e *MapExecutor) Execute(ctx context.Context, h coord.BatchHandle) error {
	if e.ExecuteErr != nil {
		return e.ExecuteErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	reqs, ok := e.batches[h]
	if !ok {
		return fmt.Errorf("unknown batch %s", h)
	}
	raw := make(coord.RawResults, len(reqs))
	for _, r := range reqs {
		raw[r.Name] = []float64{e.Eval(r)}
	}
	e.results[h] = raw
	return nil
}

// Results implements coord.Executor.
func (e *MapExecutor) Results(h coord.BatchHandle) (coord.RawResults, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	raw, ok := e.results[h]
	if !ok {
		return nil, fmt.Errorf("batch %s has not been executed", h)
	}
	return raw, nil
}
