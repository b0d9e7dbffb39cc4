// Package coord coordinates a pool of independent black-box optimizers that
// share one batched evaluation backend.
//
// # Reading Guide
//
// Start with these files:
//   - interfaces.go: the collaborator contracts (Optimizer, CostModel, Executor)
//   - topology.go: sharing modes and the static sharing matrix
//   - round.go: the per-round request ledger
//   - router.go: resolving sharing entries into observations
//
// The round lifecycle itself (init, request, update) lives in coord/pool.
//
// # Architecture
//
// The coord package defines the data model and the pure building blocks;
// implementations live in sub-packages:
//   - coord/pool/: the Coordinator facade owning N optimizer slots
//   - coord/batch/: merging many coordinators' requests into one executor submission
//   - coord/bayes/: a Gaussian-process optimizer satisfying Optimizer
//   - coord/problem/: periodic synthetic cost models satisfying CostModel
//   - coord/trace/: per-round request and delivery records
//
// Everything in this package is single-goroutine. Independent coordinators
// share no mutable state and may run on separate goroutines.
package coord
