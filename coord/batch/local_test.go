package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/qcoptim/parallel-optim/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumEval(_ context.Context, req coord.EncodedRequest) ([]float64, error) {
	var s float64
	for _, p := range req.Params {
		s += p
	}
	return []float64{s}, nil
}

func numbered(n int) []coord.EncodedRequest {
	out := make([]coord.EncodedRequest, n)
	for i := range out {
		tok := coord.Token(string(rune('a' + i)))
		out[i] = coord.EncodedRequest{ID: tok, Name: string(tok), Params: []float64{float64(i), 1}}
	}
	return out
}

func TestLocalExecutor_EvaluatesInJobs(t *testing.T) {
	// GIVEN a local executor with capacity 3 and registered metrics
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "local")
	require.NoError(t, err)
	exec := NewLocalExecutor(sumEval, 3, 2, m)

	// WHEN 7 requests are executed
	raw, err := coord.ExecuteBatch(context.Background(), exec, numbered(7))

	// THEN every request has a value and 3 jobs ran
	require.NoError(t, err)
	assert.Len(t, raw, 7)
	assert.Equal(t, []float64{5}, raw["e"])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Jobs))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Requests))
	assert.Zero(t, testutil.ToFloat64(m.Failures))
}

func TestLocalExecutor_EvalErrorFailsBatch(t *testing.T) {
	boom := errors.New("device lost")
	var calls atomic.Int32
	eval := func(ctx context.Context, req coord.EncodedRequest) ([]float64, error) {
		calls.Add(1)
		if req.Name == "b" {
			return nil, boom
		}
		return []float64{0}, nil
	}
	m, err := NewMetrics(nil, "local")
	require.NoError(t, err)
	exec := NewLocalExecutor(eval, 1, 1, m)

	_, err = coord.ExecuteBatch(context.Background(), exec, numbered(4))

	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Failures), 1.0)
}

func TestLocalExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := NewLocalExecutor(sumEval, 2, 1, nil)
	_, err := coord.ExecuteBatch(ctx, exec, numbered(4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalExecutor_UnknownHandle(t *testing.T) {
	exec := NewLocalExecutor(sumEval, 2, 1, nil)
	assert.Error(t, exec.Execute(context.Background(), "local-99"))
	_, err := exec.Results("local-99")
	assert.Error(t, err)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, "local")
	require.NoError(t, err)
	_, err = NewMetrics(reg, "local")
	assert.Error(t, err)
}
