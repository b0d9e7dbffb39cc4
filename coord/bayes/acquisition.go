package bayes

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Acquisition names a rule for scoring candidate points from the GP
// posterior. Every score is lower-is-better, since costs are minimised.
type Acquisition string

const (
	// UCB is the lower confidence bound mean - Beta·σ.
	UCB Acquisition = "ucb"
	// PI scores by negated probability of improving on the best value by Xi.
	PI Acquisition = "pi"
	// EI scores by negated expected improvement over the best value plus Xi.
	EI Acquisition = "ei"
	// Thompson scores by one posterior draw per candidate.
	Thompson Acquisition = "thompson"
)

var validAcquisitions = map[Acquisition]bool{UCB: true, PI: true, EI: true, Thompson: true}

// IsValidAcquisition returns true if name is a recognized acquisition.
func IsValidAcquisition(name string) bool {
	return validAcquisitions[Acquisition(name)]
}

// AcquisitionParams carries the knobs of all acquisition rules.
type AcquisitionParams struct {
	Beta      float64
	Xi        float64
	BestSoFar float64
	Rand      *rand.Rand // required by Thompson
}

// minVariance keeps σ positive at observed points.
const minVariance = 1e-12

// Score evaluates acquisition a for a posterior with the given mean and variance.
func (a Acquisition) Score(mean, variance float64, p AcquisitionParams) (float64, error) {
	variance = math.Max(variance, minVariance)
	sigma := math.Sqrt(variance)
	switch a {
	case UCB:
		return mean - p.Beta*sigma, nil
	case PI:
		z := (p.BestSoFar - p.Xi - mean) / sigma
		return -distuv.UnitNormal.CDF(z), nil
	case EI:
		improvement := p.BestSoFar - p.Xi - mean
		z := improvement / sigma
		return -(improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)), nil
	case Thompson:
		if p.Rand == nil {
			return 0, fmt.Errorf("thompson acquisition needs a random source")
		}
		return mean + sigma*p.Rand.NormFloat64(), nil
	default:
		return 0, fmt.Errorf("unknown acquisition %q", a)
	}
}
