package coord

import "fmt"

// Observation is one (x, y) pair delivered to an optimizer.
type Observation struct {
	X []float64
	Y float64
}

// Resolve turns a sharing entry into the observation its consumer receives:
// the point comes from the ledger, the value from the consumer's own cost
// model decoding the raw results by the point's token.
func Resolve(entry SharingEntry, round *Round, models []CostModel, raw RawResults) (Observation, error) {
	if entry.Consumer < 0 || entry.Consumer >= len(models) {
		return Observation{}, fmt.Errorf("resolve: consumer %d outside pool of %d: %w",
			entry.Consumer, len(models), ErrUnknownRequest)
	}
	rec, err := round.Lookup(entry.Key())
	if err != nil {
		return Observation{}, err
	}
	y, err := models[entry.Consumer].Decode(raw, rec.ID)
	if err != nil {
		return Observation{}, fmt.Errorf("decoding %s for consumer %d (generator=%d, point=%d): %w",
			rec.ID, entry.Consumer, entry.Generator, entry.Point, err)
	}
	return Observation{X: rec.X, Y: y}, nil
}

// ResolveAll resolves every entry of m and groups the observations by
// consumer, preserving matrix order. Nothing is returned unless every entry
// resolves.
func ResolveAll(m SharingMatrix, round *Round, models []CostModel, raw RawResults) ([][]Observation, error) {
	out := make([][]Observation, m.N())
	for _, e := range m.entries {
		obs, err := Resolve(e, round, models, raw)
		if err != nil {
			return nil, err
		}
		out[e.Consumer] = append(out[e.Consumer], obs)
	}
	return out, nil
}
