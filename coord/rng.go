package coord

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === Subsystem Constants ===

const (
	// SubsystemInit is the RNG subsystem for init-round sample generation.
	// Uses the master seed directly.
	SubsystemInit = "init"
)

// SubsystemPadding returns the subsystem name for slot i's padding points.
func SubsystemPadding(i int) string {
	return fmt.Sprintf("padding_%d", i)
}

// SubsystemOptimizer returns the subsystem name for slot i's optimizer.
func SubsystemOptimizer(i int) string {
	return fmt.Sprintf("optimizer_%d", i)
}

// SubsystemLandscape is the RNG subsystem for drawing synthetic landscapes.
const SubsystemLandscape = "landscape"

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so that drawing padding directions for one slot never shifts the init
// samples or another slot's directions.
//
// Derivation formula:
//   - For SubsystemInit: uses seed directly
//   - For all other subsystems: seed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derivedSeed := p.seed
	if name != SubsystemInit {
		derivedSeed = p.seed ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
