package batch

import (
	"context"
	"fmt"

	"github.com/qcoptim/parallel-optim/coord"
	"github.com/sirupsen/logrus"
)

// Participant is a coordinator taking part in a merged study.
// *pool.Coordinator satisfies it.
type Participant interface {
	InitRequests() ([]coord.EncodedRequest, error)
	Init(raw coord.RawResults) error
	NextEvaluationRequests(points [][]float64) ([]coord.EncodedRequest, error)
	Update(raw coord.RawResults) error
}

// Batch merges the requests of several owners into one executor call.
//
// Thread-safety: NOT thread-safe.
type Batch struct {
	reqs  []coord.EncodedRequest
	names map[string]string // request name → owner
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{names: make(map[string]string)}
}

// Add appends owner's requests. Request names must be unique across the
// batch, including within reqs. A rejected call adds nothing.
func (b *Batch) Add(owner string, reqs []coord.EncodedRequest) error {
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if prev, ok := b.names[r.Name]; ok {
			return fmt.Errorf("request %s of %s collides with %s", r.Name, owner, prev)
		}
		if seen[r.Name] {
			return fmt.Errorf("request %s of %s is duplicated", r.Name, owner)
		}
		seen[r.Name] = true
	}
	for _, r := range reqs {
		b.names[r.Name] = owner
	}
	b.reqs = append(b.reqs, reqs...)
	return nil
}

// Len returns the number of requests added so far.
func (b *Batch) Len() int { return len(b.reqs) }

// Execute runs every added request through exec as one batch and resets
// the batch. Executor errors are returned unchanged.
func (b *Batch) Execute(ctx context.Context, exec coord.Executor) (coord.RawResults, error) {
	reqs := b.reqs
	b.reqs = nil
	b.names = make(map[string]string)
	return coord.ExecuteBatch(ctx, exec, reqs)
}

// StudyEntry is one participant of a study and the number of optimisation
// rounds it runs after init.
type StudyEntry struct {
	Name        string
	Participant Participant
	Rounds      int
}

// RunStudy drives every entry through the init round and then through its
// own number of optimisation rounds. Each phase of all still-active entries
// is merged into a single executor batch.
func RunStudy(ctx context.Context, exec coord.Executor, entries []StudyEntry) error {
	b := NewBatch()
	maxRounds := 0
	for _, e := range entries {
		reqs, err := e.Participant.InitRequests()
		if err != nil {
			return fmt.Errorf("%s init requests: %w", e.Name, err)
		}
		if err := b.Add(e.Name, reqs); err != nil {
			return err
		}
		if e.Rounds > maxRounds {
			maxRounds = e.Rounds
		}
	}
	n := b.Len()
	raw, err := b.Execute(ctx, exec)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := e.Participant.Init(raw); err != nil {
			return fmt.Errorf("%s init: %w", e.Name, err)
		}
	}
	logrus.Infof("study: init of %d participants from %d requests", len(entries), n)

	for r := 1; r <= maxRounds; r++ {
		var active []StudyEntry
		for _, e := range entries {
			if r > e.Rounds {
				continue
			}
			reqs, err := e.Participant.NextEvaluationRequests(nil)
			if err != nil {
				return fmt.Errorf("%s round %d: %w", e.Name, r, err)
			}
			if err := b.Add(e.Name, reqs); err != nil {
				return err
			}
			active = append(active, e)
		}
		n := b.Len()
		raw, err := b.Execute(ctx, exec)
		if err != nil {
			return err
		}
		for _, e := range active {
			if err := e.Participant.Update(raw); err != nil {
				return fmt.Errorf("%s round %d update: %w", e.Name, r, err)
			}
		}
		logrus.Debugf("study: round %d/%d, %d participants, %d requests", r, maxRounds, len(active), n)
	}
	return nil
}
