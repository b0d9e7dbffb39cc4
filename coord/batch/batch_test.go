package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/qcoptim/parallel-optim/coord"
	"github.com/qcoptim/parallel-optim/coord/batch"
	"github.com/qcoptim/parallel-optim/coord/internal/testutil"
	"github.com/qcoptim/parallel-optim/coord/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T, prefix string, mode coord.SharingMode, n int) (*pool.Coordinator[*testutil.RecordingOptimizer], []*testutil.RecordingOptimizer) {
	t.Helper()
	cfg := coord.DefaultConfig()
	cfg.SharingMode = string(mode)
	cfg.InitialSamples = coord.Samples(3)
	opt := make([]*testutil.RecordingOptimizer, n)
	costs := make([]coord.CostModel, n)
	for i := range opt {
		opt[i] = testutil.NewRecordingOptimizer(1, float64(i))
		costs[i] = testutil.SumCost{D: 1, PerPoint: 2}
	}
	c, err := pool.New(cfg, opt, costs, pool.WithTokenSource(&coord.CounterTokens{Prefix: prefix}), pool.WithName(prefix))
	require.NoError(t, err)
	return c, opt
}

func TestRunStudy_MergesCoordinators(t *testing.T) {
	// GIVEN two coordinators of different sizes and modes sharing one executor
	a, optA := newCoordinator(t, "a", coord.Shared, 2)
	b, optB := newCoordinator(t, "b", coord.Left, 3)
	exec := testutil.NewMapExecutor()

	// WHEN a 2-round study runs
	err := batch.RunStudy(context.Background(), exec, []batch.StudyEntry{
		{Name: "a", Participant: a, Rounds: 2},
		{Name: "b", Participant: b, Rounds: 2},
	})

	// THEN every phase was one merged executor batch
	require.NoError(t, err)
	initReqs := 2 * (3 + 3)
	roundReqs := 2 * (2 + 6)
	assert.Equal(t, initReqs+2*roundReqs, exec.Submitted)
	assert.Equal(t, 2, a.Rounds())
	assert.Equal(t, 2, b.Rounds())
	for _, o := range optA {
		assert.Len(t, o.Points, 3+2*2)
	}
	for _, o := range optB {
		assert.Len(t, o.Points, 3+2*3)
	}
}

func TestRunStudy_ExecutorErrorUnchanged(t *testing.T) {
	a, _ := newCoordinator(t, "a", coord.Shared, 2)
	boom := errors.New("queue closed")
	exec := testutil.NewMapExecutor()
	exec.SubmitErr = boom

	err := batch.RunStudy(context.Background(), exec, []batch.StudyEntry{{Name: "a", Participant: a, Rounds: 1}})

	assert.Equal(t, boom, err)
}

func TestRunStudy_UnevenRounds(t *testing.T) {
	// GIVEN a single-slot coordinator with 3 rounds and a pair with 1
	a, optA := newCoordinator(t, "a", coord.Independent, 1)
	b, optB := newCoordinator(t, "b", coord.Shared, 2)
	exec := testutil.NewMapExecutor()

	// WHEN the study runs
	err := batch.RunStudy(context.Background(), exec, []batch.StudyEntry{
		{Name: "a", Participant: a, Rounds: 3},
		{Name: "b", Participant: b, Rounds: 1},
	})

	// THEN each ran its own number of rounds
	require.NoError(t, err)
	assert.Equal(t, 3, a.Rounds())
	assert.Equal(t, 1, b.Rounds())
	assert.Equal(t, 3, optA[0].Proposals)
	assert.Equal(t, 1, optB[0].Proposals)
}

func TestBatch_RejectsNameCollision(t *testing.T) {
	b := batch.NewBatch()
	reqs := []coord.EncodedRequest{{ID: "t-1", Name: "t-1/0"}}
	require.NoError(t, b.Add("a", reqs))
	assert.Error(t, b.Add("b", reqs))
	assert.Equal(t, 1, b.Len())
}

func TestBatch_RejectsDuplicateWithinOneAdd(t *testing.T) {
	b := batch.NewBatch()
	reqs := []coord.EncodedRequest{{ID: "t-1", Name: "t-1/0"}, {ID: "t-1", Name: "t-1/0"}}
	assert.ErrorContains(t, b.Add("a", reqs), "duplicated")
	assert.Zero(t, b.Len())

	// the rejected call registered no names
	require.NoError(t, b.Add("b", reqs[:1]))
}

func TestBatch_ExecuteResets(t *testing.T) {
	b := batch.NewBatch()
	require.NoError(t, b.Add("a", []coord.EncodedRequest{{ID: "t-1", Name: "t-1/0", Params: []float64{2}}}))
	raw, err := b.Execute(context.Background(), testutil.NewMapExecutor())
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, raw["t-1/0"])
	assert.Zero(t, b.Len())
}
