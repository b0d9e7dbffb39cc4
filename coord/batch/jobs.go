// Package batch executes encoded requests: in-process, over HTTP, and merged
// across several coordinators so that one executor call serves them all.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qcoptim/parallel-optim/coord"
	"github.com/sourcegraph/conc/pool"
)

// jobFunc evaluates one chunk of at most capacity requests.
type jobFunc func(ctx context.Context, reqs []coord.EncodedRequest) (coord.RawResults, error)

// jobStore keeps submitted batches and their results for the Submit /
// Execute / Results cycle shared by the executors in this package.
type jobStore struct {
	prefix  string
	mu      sync.Mutex
	next    int
	pending map[coord.BatchHandle][]coord.EncodedRequest
	results map[coord.BatchHandle]coord.RawResults
}

func newJobStore(prefix string) *jobStore {
	return &jobStore{
		prefix:  prefix,
		pending: make(map[coord.BatchHandle][]coord.EncodedRequest),
		results: make(map[coord.BatchHandle]coord.RawResults),
	}
}

func (s *jobStore) submit(reqs []coord.EncodedRequest) coord.BatchHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := coord.BatchHandle(fmt.Sprintf("%s-%d", s.prefix, s.next))
	s.pending[h] = reqs
	return h
}

func (s *jobStore) take(h coord.BatchHandle) ([]coord.EncodedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs, ok := s.pending[h]
	if !ok {
		return nil, fmt.Errorf("unknown batch %q", h)
	}
	delete(s.pending, h)
	return reqs, nil
}

func (s *jobStore) store(h coord.BatchHandle, raw coord.RawResults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[h] = raw
}

// fetch returns and forgets the results of h.
func (s *jobStore) fetch(h coord.BatchHandle) (coord.RawResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.results[h]
	if !ok {
		return nil, fmt.Errorf("batch %q has no results", h)
	}
	delete(s.results, h)
	return raw, nil
}

// chunk splits reqs into jobs of at most capacity requests. Requests of one
// token never straddle two jobs unless a single token exceeds capacity.
func chunk(reqs []coord.EncodedRequest, capacity int) [][]coord.EncodedRequest {
	if capacity < 1 || len(reqs) <= capacity {
		return [][]coord.EncodedRequest{reqs}
	}
	var jobs [][]coord.EncodedRequest
	start := 0
	for start < len(reqs) {
		end := start + capacity
		if end >= len(reqs) {
			jobs = append(jobs, reqs[start:])
			break
		}
		cut := end
		for cut > start && reqs[cut].ID == reqs[cut-1].ID {
			cut--
		}
		if cut == start {
			cut = end
		}
		jobs = append(jobs, reqs[start:cut])
		start = cut
	}
	return jobs
}

// runJobs evaluates every chunk on at most workers goroutines and merges the
// results. The first failing job cancels the rest.
func runJobs(ctx context.Context, jobs [][]coord.EncodedRequest, workers int, metrics *Metrics, run jobFunc) (coord.RawResults, error) {
	if workers < 1 {
		workers = 1
	}
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(workers)
	var mu sync.Mutex
	merged := make(coord.RawResults)
	for _, job := range jobs {
		job := job
		p.Go(func(ctx context.Context) error {
			start := time.Now()
			raw, err := run(ctx, job)
			metrics.observeJob(len(job), time.Since(start), err)
			if err != nil {
				return err
			}
			mu.Lock()
			merged.Merge(raw)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}
