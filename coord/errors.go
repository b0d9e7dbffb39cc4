package coord

import (
	"errors"
	"fmt"
)

// Error kinds. Detail types below unwrap to one of these so callers can
// match with errors.Is.
var (
	// ErrInvalidTopology reports an unrecognized sharing mode or pool size.
	ErrInvalidTopology = errors.New("invalid topology")
	// ErrNotImplemented reports a recognized but unsupported sharing mode.
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnknownRequest reports a ledger miss: the round and the sharing
	// matrix disagree about which points exist.
	ErrUnknownRequest = errors.New("unknown request")
	// ErrConsistencyFault reports a count mismatch between what a round
	// generated and what its topology expects.
	ErrConsistencyFault = errors.New("consistency fault")
	// ErrNoPendingRound reports an init or update call with no matching
	// request phase before it.
	ErrNoPendingRound = errors.New("no pending round")
)

// TopologyError describes why a sharing mode or pool size was rejected.
type TopologyError struct {
	Mode   string
	N      int
	Reason string
	Err    error // ErrInvalidTopology or ErrNotImplemented
}

func (e *TopologyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("sharing mode %q (n=%d): %v: %s", e.Mode, e.N, e.Err, e.Reason)
	}
	return fmt.Sprintf("sharing mode %q (n=%d): %v", e.Mode, e.N, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

// UnknownRequestError is returned by Round.Lookup on a miss.
type UnknownRequestError struct {
	Round int
	Key   RequestKey
	Known int // ledger size at the time of the miss
}

func (e *UnknownRequestError) Error() string {
	return fmt.Sprintf("round %d: no request recorded for requester=%d point=%d (ledger holds %d entries)",
		e.Round, e.Key.Requester, e.Key.Point, e.Known)
}

func (e *UnknownRequestError) Unwrap() error { return ErrUnknownRequest }

// ConsistencyError reports a mismatch between expected and actual counts.
// Instance is -1 when the fault is not tied to one pool slot.
type ConsistencyError struct {
	What     string
	Mode     SharingMode
	Instance int
	Expected int
	Actual   int
}

func (e *ConsistencyError) Error() string {
	if e.Instance >= 0 {
		return fmt.Sprintf("%v: %s (mode=%s, instance=%d): expected %d, got %d",
			ErrConsistencyFault, e.What, e.Mode, e.Instance, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%v: %s (mode=%s): expected %d, got %d",
		ErrConsistencyFault, e.What, e.Mode, e.Expected, e.Actual)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistencyFault }
