package cmd

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/qcoptim/parallel-optim/coord"
	"github.com/qcoptim/parallel-optim/coord/batch"
	"github.com/qcoptim/parallel-optim/coord/bayes"
	"github.com/qcoptim/parallel-optim/coord/problem"
	"github.com/qcoptim/parallel-optim/coord/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetSplit(t *testing.T) {
	tests := []struct {
		calls      int
		ratio      float64
		n          int
		wantInit   int
		wantRounds int
	}{
		{150, 0.5, 1, 75, 75},
		{150, 0.5, 2, 38, 38},
		{150, 0.5, 3, 25, 25},
		{10, 0.0, 3, 1, 3}, // at least one init sample
	}
	for _, tc := range tests {
		t.Run(strconv.Itoa(tc.n), func(t *testing.T) {
			init, rounds := BudgetSplit(tc.calls, tc.ratio, tc.n)
			assert.Equal(t, tc.wantInit, init)
			assert.Equal(t, tc.wantRounds, rounds)
		})
	}
}

func smallStudy(t *testing.T) StudyOptions {
	t.Helper()
	bcfg := bayes.DefaultConfig()
	bcfg.Iterations = 5
	return StudyOptions{
		PoolSizes:      []int{1, 2},
		Trials:         2,
		Calls:          8,
		InitRatio:      0.5,
		Coord:          coord.DefaultConfig(),
		InitFromBudget: true,
		Bayes:          bcfg,
		Landscape:      problem.RandomLandscape(rand.New(rand.NewSource(5)), 1, 2, 0),
		Workers:        2,
		TraceLevel:     trace.TraceLevelRounds,
	}
}

func TestRunStudy_Local(t *testing.T) {
	// GIVEN a budget of 8 calls split evenly for pool sizes 1 and 2
	opts := smallStudy(t)
	reg := prometheus.NewRegistry()
	opts.Registry = reg

	// WHEN the study runs in-process
	results, err := RunStudy(context.Background(), opts)

	// THEN every coordinator ran its share of rounds and found a point
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		want := 4
		if r.PoolSize == 2 {
			want = 2
		}
		assert.Equal(t, want, r.Rounds, "pool %d trial %d", r.PoolSize, r.Trial)
		assert.Equal(t, want+1, r.Summary.Rounds)
		require.NotNil(t, r.BestX)
		assert.False(t, math.IsInf(r.Best, 0))
		// noiseless landscape: observed best is the exact value
		assert.InDelta(t, r.Exact, r.Best, 1e-9)
	}
	assert.Equal(t, 1, results[0].PoolSize)
	assert.Equal(t, 2, results[3].PoolSize)

	// AND shared pools routed each other's points
	assert.Positive(t, results[3].Summary.SharedDeliveries)
	assert.Zero(t, results[0].Summary.SharedDeliveries)
}

func TestRunStudy_RemoteExecutor(t *testing.T) {
	// GIVEN an evaluation service backed by the same landscape
	opts := smallStudy(t)
	opts.PoolSizes = []int{2}
	opts.Trials = 1
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var job batch.JobRequest
		if err := jsoniter.NewDecoder(r.Body).Decode(&job); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := batch.JobResponse{Results: make(map[string][]float64)}
		for _, wr := range job.Requests {
			v, err := opts.Landscape.Evaluate(r.Context(), coord.EncodedRequest{Name: wr.Name, Params: wr.Params, Meta: wr.Meta})
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			resp.Results[wr.Name] = v
		}
		_ = jsoniter.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()
	opts.ExecutorURL = server.URL

	// WHEN the study runs against it
	results, err := RunStudy(context.Background(), opts)

	// THEN it completes like a local study
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Rounds)
}

func TestRunStudy_FixedRounds(t *testing.T) {
	opts := smallStudy(t)
	opts.Trials = 1
	opts.Rounds = 1
	results, err := RunStudy(context.Background(), opts)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, 1, r.Rounds)
	}
}

func TestRunStudy_SeededNoisyRunsRepeat(t *testing.T) {
	// GIVEN a noisy study whose batches split into several concurrent jobs
	opts := smallStudy(t)
	opts.Landscape = problem.RandomLandscape(rand.New(rand.NewSource(5)), 1, 2, 0.3)
	opts.Landscape.Seed = 21
	opts.Coord.ExecutorBatchCapacity = 3
	opts.Workers = 4

	// WHEN the same study runs twice
	first, err := RunStudy(context.Background(), opts)
	require.NoError(t, err)
	second, err := RunStudy(context.Background(), opts)
	require.NoError(t, err)

	// THEN every coordinator reports the same best point and value
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Best, second[i].Best, "pool %d trial %d", first[i].PoolSize, first[i].Trial)
		assert.Equal(t, first[i].BestX, second[i].BestX)
	}
}

func TestRunStudy_ExportsTraces(t *testing.T) {
	// GIVEN a study writing traces
	opts := smallStudy(t)
	opts.Trials = 1
	opts.TraceDir = filepath.Join(t.TempDir(), "traces")

	// WHEN it runs
	results, err := RunStudy(context.Background(), opts)
	require.NoError(t, err)

	// THEN each coordinator's deliveries can be loaded back
	for _, r := range results {
		base := filepath.Join(opts.TraceDir, "pool"+strconv.Itoa(r.PoolSize)+"_trial0")
		loaded, err := trace.Load(base+".yaml", base+".csv")
		require.NoError(t, err)
		assert.Equal(t, r.PoolSize, loaded.Header.PoolSize)
		assert.Equal(t, r.Summary.Deliveries, len(loaded.Deliveries))
	}
}

func TestRunStudy_InvalidOptions(t *testing.T) {
	opts := smallStudy(t)
	opts.PoolSizes = []int{0}
	_, err := RunStudy(context.Background(), opts)
	assert.Error(t, err)

	opts = smallStudy(t)
	opts.Coord.SharingMode = "random1"
	_, err = RunStudy(context.Background(), opts)
	assert.ErrorIs(t, err, coord.ErrNotImplemented)

	opts = smallStudy(t)
	opts.TraceLevel = "verbose"
	_, err = RunStudy(context.Background(), opts)
	assert.Error(t, err)

	opts = smallStudy(t)
	opts.TraceLevel = trace.TraceLevelNone
	opts.TraceDir = t.TempDir()
	_, err = RunStudy(context.Background(), opts)
	assert.Error(t, err)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, []StudyResult{
		{PoolSize: 1, Trial: 0, Rounds: 4, Best: -1, Exact: -1},
		{PoolSize: 1, Trial: 1, Rounds: 4, Best: -0.5, Exact: -0.5},
		{PoolSize: 2, Trial: 0, Rounds: 2, Best: -2, Exact: -2, Summary: &trace.TraceSummary{SharedDeliveries: 3}},
	})
	out := buf.String()
	assert.Contains(t, out, "pool 1: mean exact best -0.75000 over 2 trials")
	assert.Contains(t, out, "pool 2: mean exact best -2.00000 over 1 trials")
}
