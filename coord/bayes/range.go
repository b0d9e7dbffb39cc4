package bayes

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// ParameterRange is an inclusive [Min, Max] interval.
type ParameterRange[T constraints.Float] struct {
	Min T `yaml:"min"`
	Max T `yaml:"max"`
}

// Validate reports an error for an empty or inverted range.
func (r ParameterRange[T]) Validate() error {
	if !(r.Min < r.Max) {
		return fmt.Errorf("invalid range [%v, %v]", r.Min, r.Max)
	}
	return nil
}

// Width returns Max - Min.
func (r ParameterRange[T]) Width() T { return r.Max - r.Min }

// Contains reports whether v lies inside the range.
func (r ParameterRange[T]) Contains(v T) bool { return v >= r.Min && v <= r.Max }

// Clamp returns v limited to the range.
func (r ParameterRange[T]) Clamp(v T) T {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
