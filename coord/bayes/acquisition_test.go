package bayes

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquisition_PrefersLowMean(t *testing.T) {
	// GIVEN two candidates with equal uncertainty
	p := AcquisitionParams{Beta: 2, Xi: 0, BestSoFar: 0, Rand: rand.New(rand.NewSource(1))}

	for _, a := range []Acquisition{UCB, PI, EI} {
		t.Run(string(a), func(t *testing.T) {
			// WHEN both are scored
			low, err := a.Score(-1, 0.25, p)
			require.NoError(t, err)
			high, err := a.Score(1, 0.25, p)
			require.NoError(t, err)

			// THEN the lower predicted cost scores better
			assert.Less(t, low, high)
		})
	}
}

func TestAcquisition_UCBRewardsUncertainty(t *testing.T) {
	p := AcquisitionParams{Beta: 2}
	certain, _ := UCB.Score(0, 0.01, p)
	uncertain, _ := UCB.Score(0, 1, p)
	assert.Less(t, uncertain, certain)
	assert.InDelta(t, -2.0, uncertain, 1e-12)
}

func TestAcquisition_EINeverRewardsWorsening(t *testing.T) {
	// EI is non-negative, so its score is never above zero
	s, err := EI.Score(10, 1e-6, AcquisitionParams{BestSoFar: 0})
	require.NoError(t, err)
	assert.LessOrEqual(t, s, 0.0)
	assert.InDelta(t, 0.0, s, 1e-9)
}

func TestAcquisition_ThompsonNeedsRand(t *testing.T) {
	_, err := Thompson.Score(0, 1, AcquisitionParams{})
	assert.Error(t, err)
}

func TestAcquisition_Unknown(t *testing.T) {
	_, err := Acquisition("nope").Score(0, 1, AcquisitionParams{})
	assert.Error(t, err)
	assert.False(t, IsValidAcquisition("nope"))
	assert.True(t, IsValidAcquisition("ei"))
}
