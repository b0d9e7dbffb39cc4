// Package bayes provides a Gaussian-process Bayesian optimizer over the
// periodic parameter box [0, 2π)^dim. The acquisition is minimised with the
// Mayfly swarm optimizer.
package bayes

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
	"github.com/qcoptim/parallel-optim/coord"
	"github.com/sirupsen/logrus"
)

// minPopulation is the smallest swarm Mayfly runs reliably with.
const minPopulation = 20

// Config configures an Optimizer.
type Config struct {
	Acquisition Acquisition             `yaml:"acquisition"`
	Beta        float64                 `yaml:"beta"`
	Xi          float64                 `yaml:"xi"`
	Kernel      Kernel                  `yaml:"kernel"`
	Bounds      ParameterRange[float64] `yaml:"bounds"`
	Iterations  int                     `yaml:"iterations"` // Mayfly iterations per proposal
	Population  int                     `yaml:"population"` // Mayfly swarm size
}

// DefaultConfig returns an EI optimizer over [0, 2π].
func DefaultConfig() Config {
	return Config{
		Acquisition: EI,
		Beta:        2.0,
		Xi:          0.01,
		Kernel:      Kernel{LengthScale: 1.0, SignalVariance: 1.0, NoiseVariance: 1e-4},
		Bounds:      ParameterRange[float64]{Min: 0, Max: coord.TwoPi},
		Iterations:  50,
		Population:  minPopulation,
	}
}

// Validate checks the acquisition, kernel and search settings.
func (c Config) Validate() error {
	if !IsValidAcquisition(string(c.Acquisition)) {
		return fmt.Errorf("unknown acquisition %q", c.Acquisition)
	}
	if c.Kernel.LengthScale <= 0 || c.Kernel.SignalVariance <= 0 || c.Kernel.NoiseVariance < 0 {
		return fmt.Errorf("invalid kernel %+v", c.Kernel)
	}
	if err := c.Bounds.Validate(); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", c.Iterations)
	}
	if c.Population < minPopulation {
		return fmt.Errorf("population must be >= %d, got %d", minPopulation, c.Population)
	}
	return nil
}

// Optimizer is a GP-based coord.Optimizer. Observe only buffers data; the
// model is rebuilt by Refit.
//
// Thread-safety: NOT thread-safe.
type Optimizer struct {
	dim   int
	cfg   Config
	gp    *GaussianProcess
	rng   *rand.Rand
	x     [][]float64
	y     []float64
	bestY float64
	bestX []float64
}

var _ coord.Optimizer = (*Optimizer)(nil)

// New creates an optimizer over dim parameters. rng drives both random
// proposals and the acquisition search.
func New(dim int, cfg Config, rng *rand.Rand) (*Optimizer, error) {
	if dim < 1 {
		return nil, fmt.Errorf("dimension must be >= 1, got %d", dim)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("optimizer needs a random source")
	}
	return &Optimizer{dim: dim, cfg: cfg, gp: NewGaussianProcess(cfg.Kernel), rng: rng, bestY: math.Inf(1)}, nil
}

// Dim returns the number of parameters.
func (o *Optimizer) Dim() int { return o.dim }

// Len returns the number of buffered observations.
func (o *Optimizer) Len() int { return len(o.x) }

// Best returns the lowest observation so far. ok is false before any.
func (o *Optimizer) Best() (x []float64, y float64, ok bool) {
	if o.bestX == nil {
		return nil, math.Inf(1), false
	}
	return append([]float64(nil), o.bestX...), o.bestY, true
}

// Observe implements coord.Optimizer.
func (o *Optimizer) Observe(points [][]float64, values []float64) error {
	if len(points) != len(values) {
		return fmt.Errorf("observe: %d points but %d values", len(points), len(values))
	}
	for i, p := range points {
		if len(p) != o.dim {
			return fmt.Errorf("observe: point %d has %d coordinates, want %d", i, len(p), o.dim)
		}
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return fmt.Errorf("observe: value %d is %v", i, values[i])
		}
	}
	for i, p := range points {
		cp := append([]float64(nil), p...)
		o.x = append(o.x, cp)
		o.y = append(o.y, values[i])
		if values[i] < o.bestY {
			o.bestY = values[i]
			o.bestX = cp
		}
	}
	return nil
}

// Refit implements coord.Optimizer.
func (o *Optimizer) Refit() error {
	if len(o.x) == 0 {
		return nil
	}
	return o.gp.Fit(o.x, o.y)
}

// Propose implements coord.Optimizer. Before the first fit it returns a
// uniform random point.
func (o *Optimizer) Propose() ([]float64, error) {
	if o.gp.Len() == 0 {
		return o.randomPoint(), nil
	}
	params := AcquisitionParams{Beta: o.cfg.Beta, Xi: o.cfg.Xi, BestSoFar: o.bestY, Rand: o.rng}

	var scoreErr error
	objective := func(p []float64) float64 {
		mean, variance, err := o.gp.Predict(p)
		if err == nil {
			var s float64
			if s, err = o.cfg.Acquisition.Score(mean, variance, params); err == nil {
				return s
			}
		}
		if scoreErr == nil {
			scoreErr = err
		}
		return math.Inf(1)
	}

	mf := mayfly.NewDefaultConfig()
	mf.ObjectiveFunc = objective
	mf.ProblemSize = o.dim
	mf.MaxIterations = o.cfg.Iterations
	mf.NPop = o.cfg.Population
	mf.LowerBound = o.cfg.Bounds.Min
	mf.UpperBound = o.cfg.Bounds.Max
	mf.Rand = rand.New(rand.NewSource(o.rng.Int63()))

	result, err := mayfly.Optimize(mf)
	if err != nil {
		return nil, fmt.Errorf("acquisition search: %w", err)
	}
	if scoreErr != nil {
		return nil, fmt.Errorf("acquisition search: %w", scoreErr)
	}
	x := make([]float64, o.dim)
	for i := range x {
		x[i] = o.cfg.Bounds.Clamp(result.GlobalBest.Position[i])
	}
	logrus.Debugf("bayes: proposed %v (acquisition %s = %.4g over %d points)",
		x, o.cfg.Acquisition, result.GlobalBest.Cost, o.gp.Len())
	return x, nil
}

func (o *Optimizer) randomPoint() []float64 {
	x := make([]float64, o.dim)
	for i := range x {
		x[i] = o.cfg.Bounds.Min + o.rng.Float64()*o.cfg.Bounds.Width()
	}
	return x
}
