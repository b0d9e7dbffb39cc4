package coord

import "context"

// Token identifies one evaluation point inside a round. Tokens are opaque;
// the only requirement is uniqueness across everything submitted in one batch.
type Token string

// EncodedRequest is one executable evaluation artifact. A single point may
// encode to several requests (e.g. one per measurement basis); all of them
// carry the point's Token.
type EncodedRequest struct {
	ID     Token             // token of the point this request belongs to
	Name   string            // unique artifact name, the key of its raw result
	Params []float64         // bound parameter values
	Meta   map[string]string // encoder-specific tags, passed through untouched
}

// RawResults maps request names to the raw values the executor produced for
// them. Cost models slice out their own entries by token.
type RawResults map[string][]float64

// Get returns the raw values recorded for the named request.
func (r RawResults) Get(name string) ([]float64, bool) {
	v, ok := r[name]
	return v, ok
}

// Merge copies every entry of other into r, overwriting duplicates.
func (r RawResults) Merge(other RawResults) {
	for k, v := range other {
		r[k] = v
	}
}

// Optimizer is a single black-box optimizer instance.
// Propose must not block on external work.
type Optimizer interface {
	// Propose returns the next point the optimizer wants evaluated.
	Propose() ([]float64, error)
	// Observe appends observations without refitting.
	Observe(points [][]float64, values []float64) error
	// Refit rebuilds the internal model from everything observed so far.
	Refit() error
}

// CostModel turns points into executable requests and raw results back into
// scalar costs. Different pool slots may use different cost models; each one
// decodes its own view of the shared raw results.
type CostModel interface {
	// Dim is the dimensionality of the parameter space.
	Dim() int
	// Encode builds the requests evaluating x, all tagged with id.
	Encode(x []float64, id Token) ([]EncodedRequest, error)
	// Decode computes the cost of the point tagged id from raw results.
	Decode(raw RawResults, id Token) (float64, error)
}

// BatchHandle identifies a batch submitted to an Executor.
type BatchHandle string

// Executor runs batches of encoded requests.
type Executor interface {
	Submit(ctx context.Context, reqs []EncodedRequest) (BatchHandle, error)
	// Execute blocks until the batch has run.
	Execute(ctx context.Context, h BatchHandle) error
	Results(h BatchHandle) (RawResults, error)
}

// ExecuteBatch submits, runs and collects reqs in one blocking call.
// Executor errors are returned unchanged.
func ExecuteBatch(ctx context.Context, exec Executor, reqs []EncodedRequest) (RawResults, error) {
	h, err := exec.Submit(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if err := exec.Execute(ctx, h); err != nil {
		return nil, err
	}
	return exec.Results(h)
}
