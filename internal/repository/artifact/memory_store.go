package artifact

import (
	"context"
	"sync"
)

type memKey struct {
	runID     string
	iteration int
	path      string
}

// MemoryStore keeps revisions in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	revs map[memKey]Revision
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revs: map[memKey]Revision{}}
}

func (s *MemoryStore) Save(_ context.Context, rev Revision) error {
	rev, err := validate(rev)
	if err != nil {
		return err
	}
	rev.Content = append([]byte(nil), rev.Content...)
	s.mu.Lock()
	s.revs[memKey{rev.RunID, rev.Iteration, rev.Path}] = rev
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, runID string, iteration int, p string) (Revision, error) {
	runID, err := validRunID(runID)
	if err != nil {
		return Revision{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return Revision{}, err
	}
	es, err := s.List(ctx, Query{RunID: runID, Iteration: iteration})
	if err != nil {
		return Revision{}, err
	}
	e, ok := pick(es, iteration, p)
	if !ok {
		return Revision{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rev := s.revs[memKey{runID, e.Iteration, e.Path}]
	rev.Content = append([]byte(nil), rev.Content...)
	return rev, nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]Entry, error) {
	runID, err := validRunID(q.RunID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []Entry
	for k, rev := range s.revs {
		if k.runID != runID {
			continue
		}
		e := Entry{Iteration: rev.Iteration, Path: rev.Path, Kind: rev.Kind, Size: int64(len(rev.Content))}
		if q.match(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sortEntries(out)
	return out, nil
}
