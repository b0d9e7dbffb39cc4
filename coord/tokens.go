package coord

import (
	"fmt"

	"github.com/google/uuid"
)

// TokenSource hands out request tokens.
type TokenSource interface {
	Next() Token
}

// UUIDTokens issues random UUIDv4 tokens. Safe across coordinators that
// share one batch.
type UUIDTokens struct{}

// Next implements TokenSource.
func (UUIDTokens) Next() Token {
	return Token(uuid.NewString())
}

// CounterTokens issues "<prefix>-<n>" tokens from a monotonically increasing
// counter. Deterministic, but only unique within one prefix.
type CounterTokens struct {
	Prefix string
	n      uint64
}

// Next implements TokenSource.
func (c *CounterTokens) Next() Token {
	c.n++
	return Token(fmt.Sprintf("%s-%d", c.Prefix, c.n))
}
