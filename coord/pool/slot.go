// Package pool provides the Coordinator that drives a pool of optimizer
// slots through init, request and update phases.
package pool

import (
	"math"

	"github.com/qcoptim/parallel-optim/coord"
)

// Slot pairs one optimizer with its cost model. Slot identity is positional
// and fixed for the coordinator's lifetime.
//
// Thread-safety: NOT thread-safe. Owned by a single Coordinator.
type Slot[O coord.Optimizer] struct {
	index    int
	opt      O
	cost     coord.CostModel
	observed int
	bestX    []float64
	bestY    float64
}

func newSlot[O coord.Optimizer](index int, opt O, cost coord.CostModel) *Slot[O] {
	return &Slot[O]{index: index, opt: opt, cost: cost, bestY: math.Inf(1)}
}

// Index returns the slot's position in the pool.
func (s *Slot[O]) Index() int { return s.index }

// Optimizer returns the wrapped optimizer.
func (s *Slot[O]) Optimizer() O { return s.opt }

// CostModel returns the slot's cost model.
func (s *Slot[O]) CostModel() coord.CostModel { return s.cost }

// Observed returns how many observations have been delivered to the slot.
func (s *Slot[O]) Observed() int { return s.observed }

// Best returns the lowest-cost observation delivered so far.
// ok is false before the first delivery.
func (s *Slot[O]) Best() (x []float64, y float64, ok bool) {
	if s.bestX == nil {
		return nil, math.Inf(1), false
	}
	out := make([]float64, len(s.bestX))
	copy(out, s.bestX)
	return out, s.bestY, true
}

// observe feeds a batch of observations in one call. Best-so-far only
// moves once the optimizer has accepted the batch.
func (s *Slot[O]) observe(obs []coord.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	points := make([][]float64, len(obs))
	values := make([]float64, len(obs))
	for i, o := range obs {
		points[i] = o.X
		values[i] = o.Y
	}
	if err := s.opt.Observe(points, values); err != nil {
		return err
	}
	s.observed += len(obs)
	for _, o := range obs {
		if o.Y < s.bestY {
			s.bestY = o.Y
			s.bestX = o.X
		}
	}
	return nil
}

func (s *Slot[O]) refit() error {
	return s.opt.Refit()
}
