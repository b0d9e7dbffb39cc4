package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterRange(t *testing.T) {
	r := ParameterRange[float64]{Min: -1, Max: 3}
	assert.NoError(t, r.Validate())
	assert.Equal(t, 4.0, r.Width())
	assert.True(t, r.Contains(3))
	assert.False(t, r.Contains(3.5))
	assert.Equal(t, -1.0, r.Clamp(-7))
	assert.Equal(t, 0.5, r.Clamp(0.5))

	assert.Error(t, ParameterRange[float32]{Min: 1, Max: 1}.Validate())
}
