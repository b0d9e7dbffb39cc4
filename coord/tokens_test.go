package coord

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDTokens_UniqueAndParsable(t *testing.T) {
	var src UUIDTokens
	seen := make(map[Token]bool)
	for i := 0; i < 100; i++ {
		tok := src.Next()
		_, err := uuid.Parse(string(tok))
		require.NoError(t, err)
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}

func TestCounterTokens_Monotonic(t *testing.T) {
	src := &CounterTokens{Prefix: "r"}
	assert.Equal(t, Token("r-1"), src.Next())
	assert.Equal(t, Token("r-2"), src.Next())
}
