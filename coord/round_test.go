package coord

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound_RecordAndLookup(t *testing.T) {
	r := NewRound(3)
	x := []float64{1, 2}
	require.NoError(t, r.Record(RequestKey{0, 0}, "a", x))
	require.NoError(t, r.Record(RequestKey{0, 1}, "b", []float64{3, 4}))

	// Mutating the caller's slice must not reach the ledger.
	x[0] = 99

	rec, err := r.Lookup(RequestKey{0, 0})
	require.NoError(t, err)
	assert.Equal(t, Token("a"), rec.ID)
	assert.Equal(t, []float64{1, 2}, rec.X)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []RequestKey{{0, 0}, {0, 1}}, r.Keys())
	assert.Equal(t, 3, r.Seq())
}

func TestRound_LookupMissIsUnknownRequest(t *testing.T) {
	r := NewRound(1)
	require.NoError(t, r.Record(RequestKey{0, 0}, "a", []float64{1}))

	_, err := r.Lookup(RequestKey{1, 0})
	assert.ErrorIs(t, err, ErrUnknownRequest)

	var unknown *UnknownRequestError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, RequestKey{1, 0}, unknown.Key)
	assert.Equal(t, 1, unknown.Known)
	assert.Contains(t, err.Error(), "requester=1 point=0")
}

func TestRound_DuplicateKeyIsConsistencyFault(t *testing.T) {
	r := NewRound(0)
	require.NoError(t, r.Record(RequestKey{2, 1}, "a", []float64{1}))
	err := r.Record(RequestKey{2, 1}, "b", []float64{2})
	assert.ErrorIs(t, err, ErrConsistencyFault)
	assert.Equal(t, 1, r.Len())
}
