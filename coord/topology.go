package coord

import "fmt"

// SharingMode selects which pool slots see which evaluations.
type SharingMode string

const (
	// Independent: every slot only sees its own point.
	Independent SharingMode = "independent"
	// Shared: every slot sees every slot's point.
	Shared SharingMode = "shared"
	// Left: slot i sees the points of slots 0..i and pads the rest itself.
	Left SharingMode = "left"
	// Right: slot i sees the points of slots i..n-1 and pads the rest itself.
	Right SharingMode = "right"
	// Random1 and Random2 are recognized but not implemented.
	Random1 SharingMode = "random1"
	Random2 SharingMode = "random2"
)

// validSharingModes is the set of implemented modes.
var validSharingModes = map[SharingMode]bool{Independent: true, Shared: true, Left: true, Right: true}

// reservedSharingModes are recognized but rejected with ErrNotImplemented.
var reservedSharingModes = map[SharingMode]bool{Random1: true, Random2: true}

// IsValidSharingMode returns true if name is an implemented sharing mode.
func IsValidSharingMode(name string) bool {
	return validSharingModes[SharingMode(name)]
}

// ParseSharingMode validates name. Reserved modes fail with ErrNotImplemented,
// anything else unknown with ErrInvalidTopology.
func ParseSharingMode(name string) (SharingMode, error) {
	mode := SharingMode(name)
	switch {
	case validSharingModes[mode]:
		return mode, nil
	case reservedSharingModes[mode]:
		return "", &TopologyError{Mode: name, Err: ErrNotImplemented}
	default:
		return "", &TopologyError{Mode: name, Err: ErrInvalidTopology,
			Reason: `choose "independent", "shared", "left" or "right"`}
	}
}

// SharingEntry says that slot Consumer receives the evaluation of the point
// that slot Generator produced under index Point.
type SharingEntry struct {
	Consumer  int
	Generator int
	Point     int
}

// IsPadding reports whether the entry asks the consumer to generate an extra
// point of its own, tagged with another slot's index.
func (e SharingEntry) IsPadding() bool {
	return e.Consumer == e.Generator && e.Generator != e.Point
}

// Key returns the ledger key of the evaluated point.
func (e SharingEntry) Key() RequestKey {
	return RequestKey{Requester: e.Generator, Point: e.Point}
}

// SharingMatrix is the static set of sharing entries for one pool size and
// mode. Entries are ordered by consumer, then by generator/point.
type SharingMatrix struct {
	n        int
	mode     SharingMode
	entries  []SharingEntry
	expected int // distinct points the matrix needs evaluated
}

// N returns the pool size.
func (m SharingMatrix) N() int { return m.n }

// Mode returns the sharing mode.
func (m SharingMatrix) Mode() SharingMode { return m.mode }

// Len returns the number of entries.
func (m SharingMatrix) Len() int { return len(m.entries) }

// Entries returns a copy of all entries.
func (m SharingMatrix) Entries() []SharingEntry {
	out := make([]SharingEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ExpectedPoints is the number of distinct points (real plus padding) a round
// under this matrix generates: n for independent/shared, n(n+1)/2 for
// left/right.
func (m SharingMatrix) ExpectedPoints() int { return m.expected }

// PaddingEntries returns the entries requiring a self-generated padding point.
func (m SharingMatrix) PaddingEntries() []SharingEntry {
	var out []SharingEntry
	for _, e := range m.entries {
		if e.IsPadding() {
			out = append(out, e)
		}
	}
	return out
}

// ForConsumer returns the entries delivered to slot i.
func (m SharingMatrix) ForConsumer(i int) []SharingEntry {
	var out []SharingEntry
	for _, e := range m.entries {
		if e.Consumer == i {
			out = append(out, e)
		}
	}
	return out
}

// GenerateTopology builds the sharing matrix for n slots.
// Panics if the generated matrix violates its size post-condition, which can
// only happen through a bug in this function.
func GenerateTopology(n int, mode SharingMode) (SharingMatrix, error) {
	if n < 1 {
		return SharingMatrix{}, &TopologyError{Mode: string(mode), N: n, Err: ErrInvalidTopology,
			Reason: "pool size must be >= 1"}
	}
	if reservedSharingModes[mode] {
		return SharingMatrix{}, &TopologyError{Mode: string(mode), N: n, Err: ErrNotImplemented}
	}

	var entries []SharingEntry
	wantLen := n * n
	expected := n
	switch mode {
	case Independent:
		wantLen = n
		for i := 0; i < n; i++ {
			entries = append(entries, SharingEntry{i, i, i})
		}
	case Shared:
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				entries = append(entries, SharingEntry{i, j, j})
			}
		}
	case Left, Right:
		expected = n * (n + 1) / 2
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				sees := i >= j
				if mode == Right {
					sees = i <= j
				}
				if sees {
					entries = append(entries, SharingEntry{i, j, j})
				} else {
					entries = append(entries, SharingEntry{i, i, j})
				}
			}
		}
	default:
		return SharingMatrix{}, &TopologyError{Mode: string(mode), N: n, Err: ErrInvalidTopology}
	}

	if len(entries) != wantLen {
		panic(&ConsistencyError{What: "sharing matrix size", Mode: mode, Instance: -1,
			Expected: wantLen, Actual: len(entries)})
	}
	return SharingMatrix{n: n, mode: mode, entries: entries, expected: expected}, nil
}

// InitTopology builds the sharing matrix of the one-time init round. With
// shareInit every slot consumes the samples generated by slot 0; otherwise
// each slot consumes only its own samples.
func InitTopology(n, samples int, shareInit bool) (SharingMatrix, error) {
	if n < 1 || samples < 1 {
		return SharingMatrix{}, fmt.Errorf("init topology: n=%d samples=%d: %w", n, samples, ErrInvalidTopology)
	}
	entries := make([]SharingEntry, 0, n*samples)
	for c := 0; c < n; c++ {
		gen := c
		if shareInit {
			gen = 0
		}
		for k := 0; k < samples; k++ {
			entries = append(entries, SharingEntry{Consumer: c, Generator: gen, Point: k})
		}
	}
	expected := n * samples
	if shareInit {
		expected = samples
	}
	return SharingMatrix{n: n, mode: "init", entries: entries, expected: expected}, nil
}
