package coord

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scaledCost decodes the single raw value of a token's request, scaled.
type scaledCost struct {
	scale float64
}

func (c scaledCost) Dim() int { return 1 }

func (c scaledCost) Encode(x []float64, id Token) ([]EncodedRequest, error) {
	return []EncodedRequest{{ID: id, Name: string(id), Params: x}}, nil
}

func (c scaledCost) Decode(raw RawResults, id Token) (float64, error) {
	v, ok := raw.Get(string(id))
	if !ok {
		return 0, fmt.Errorf("no result for %s", id)
	}
	return c.scale * v[0], nil
}

func TestResolve_UsesConsumerCostModel(t *testing.T) {
	// GIVEN slot 1's point evaluated once
	r := NewRound(0)
	require.NoError(t, r.Record(RequestKey{1, 1}, "p1", []float64{0.5}))
	raw := RawResults{"p1": {2}}
	models := []CostModel{scaledCost{1}, scaledCost{10}}

	// WHEN slot 0 and slot 1 both consume it
	obs0, err := Resolve(SharingEntry{0, 1, 1}, r, models, raw)
	require.NoError(t, err)
	obs1, err := Resolve(SharingEntry{1, 1, 1}, r, models, raw)
	require.NoError(t, err)

	// THEN each decodes with its own model
	assert.Equal(t, []float64{0.5}, obs0.X)
	assert.Equal(t, 2.0, obs0.Y)
	assert.Equal(t, 20.0, obs1.Y)
}

func TestResolve_MissingLedgerEntry(t *testing.T) {
	r := NewRound(0)
	_, err := Resolve(SharingEntry{0, 1, 1}, r, []CostModel{scaledCost{1}, scaledCost{1}}, RawResults{})
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestResolve_DecodeErrorIsWrapped(t *testing.T) {
	r := NewRound(0)
	require.NoError(t, r.Record(RequestKey{0, 0}, "p0", []float64{0.5}))
	_, err := Resolve(SharingEntry{0, 0, 0}, r, []CostModel{scaledCost{1}}, RawResults{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumer 0")
	assert.False(t, errors.Is(err, ErrUnknownRequest))
}

func TestResolveAll_GroupsByConsumer(t *testing.T) {
	m, err := GenerateTopology(2, Shared)
	require.NoError(t, err)
	r := NewRound(0)
	require.NoError(t, r.Record(RequestKey{0, 0}, "p0", []float64{0}))
	require.NoError(t, r.Record(RequestKey{1, 1}, "p1", []float64{1}))
	raw := RawResults{"p0": {3}, "p1": {4}}

	obs, err := ResolveAll(m, r, []CostModel{scaledCost{1}, scaledCost{1}}, raw)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	for _, perConsumer := range obs {
		require.Len(t, perConsumer, 2)
		assert.Equal(t, 3.0, perConsumer[0].Y)
		assert.Equal(t, 4.0, perConsumer[1].Y)
	}
}
