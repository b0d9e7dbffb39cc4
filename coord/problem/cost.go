package problem

import (
	"fmt"
	"strconv"

	"github.com/qcoptim/parallel-optim/coord"
)

// CostModel encodes a point as one request per landscape term and decodes
// Scale · Σ terms + Bias. Several cost models may share a landscape.
type CostModel struct {
	landscape *Landscape
	Scale     float64
	Bias      float64
}

var _ coord.CostModel = (*CostModel)(nil)

// NewCostModel returns an unscaled cost model over l.
func NewCostModel(l *Landscape) *CostModel {
	return &CostModel{landscape: l, Scale: 1}
}

// Landscape returns the underlying landscape.
func (c *CostModel) Landscape() *Landscape { return c.landscape }

// Dim implements coord.CostModel.
func (c *CostModel) Dim() int { return c.landscape.Dim }

func requestName(id coord.Token, k int) string {
	return fmt.Sprintf("%s/%d", id, k)
}

// Encode implements coord.CostModel.
func (c *CostModel) Encode(x []float64, id coord.Token) ([]coord.EncodedRequest, error) {
	if len(x) != c.landscape.Dim {
		return nil, fmt.Errorf("point has %d coordinates, want %d", len(x), c.landscape.Dim)
	}
	reqs := make([]coord.EncodedRequest, len(c.landscape.Terms))
	for k := range reqs {
		reqs[k] = coord.EncodedRequest{
			ID:     id,
			Name:   requestName(id, k),
			Params: append([]float64(nil), x...),
			Meta:   map[string]string{MetaTerm: strconv.Itoa(k)},
		}
	}
	return reqs, nil
}

// Decode implements coord.CostModel.
func (c *CostModel) Decode(raw coord.RawResults, id coord.Token) (float64, error) {
	var sum float64
	for k := range c.landscape.Terms {
		v, ok := raw.Get(requestName(id, k))
		if !ok || len(v) == 0 {
			return 0, fmt.Errorf("missing result %s", requestName(id, k))
		}
		sum += v[0]
	}
	return c.Scale*sum + c.Bias, nil
}
