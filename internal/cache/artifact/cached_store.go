// Package artifact fronts the run history with expiring in-process caches so
// repeated reads of a run do not hit the backend.
package artifact

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	artifactrepo "workeragent/internal/repository/artifact"
)

type CacheConfig struct {
	// RevisionTTL bounds how long a loaded revision is served from memory.
	// Saved revisions of a round are immutable once the round is over.
	RevisionTTL time.Duration
	// ListTTL bounds listings; every Save to a run drops its listings.
	ListTTL    time.Duration
	MaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RevisionTTL: 10 * time.Minute,
		ListTTL:     30 * time.Second,
		MaxEntries:  1024,
	}
}

// Stats counts cache and origin traffic.
type Stats struct {
	Hits         uint64
	Misses       uint64
	OriginReads  uint64
	OriginWrites uint64
	OriginErrors uint64
}

type counters struct {
	hits, misses, reads, writes, errs atomic.Uint64
}

// CachedStore is a write-through cache over an artifact.Store.
type CachedStore struct {
	origin artifactrepo.Store

	revisions *expirable.LRU[string, artifactrepo.Revision]
	// latest maps run and path to the newest iteration seen for that path.
	latest   *expirable.LRU[string, int]
	listings *expirable.LRU[string, []artifactrepo.Entry]
	n        counters
}

func NewCachedStore(origin artifactrepo.Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.RevisionTTL <= 0 {
		cfg.RevisionTTL = def.RevisionTTL
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &CachedStore{
		origin:    origin,
		revisions: expirable.NewLRU[string, artifactrepo.Revision](cfg.MaxEntries, nil, cfg.RevisionTTL),
		latest:    expirable.NewLRU[string, int](cfg.MaxEntries, nil, cfg.RevisionTTL),
		listings:  expirable.NewLRU[string, []artifactrepo.Entry](cfg.MaxEntries, nil, cfg.ListTTL),
	}
}

// Save writes to the origin first; only a stored revision reaches the cache.
func (s *CachedStore) Save(ctx context.Context, rev artifactrepo.Revision) error {
	s.n.writes.Add(1)
	if err := s.origin.Save(ctx, rev); err != nil {
		s.n.errs.Add(1)
		return err
	}
	runID, p := strings.TrimSpace(rev.RunID), normPath(rev.Path)
	rev.Content = append([]byte(nil), rev.Content...)
	s.revisions.Add(revKey(runID, rev.Iteration, p), rev)
	if cur, ok := s.latest.Peek(pathKey(runID, p)); !ok || rev.Iteration >= cur {
		s.latest.Add(pathKey(runID, p), rev.Iteration)
	}
	s.dropListings(runID)
	return nil
}

// Load serves iteration 0 from the newest iteration seen for path.
func (s *CachedStore) Load(ctx context.Context, runID string, iteration int, p string) (artifactrepo.Revision, error) {
	runID, p = strings.TrimSpace(runID), normPath(p)
	if iteration == 0 {
		if n, ok := s.latest.Get(pathKey(runID, p)); ok {
			iteration = n
		}
	}
	if iteration > 0 {
		if rev, ok := s.revisions.Get(revKey(runID, iteration, p)); ok {
			s.n.hits.Add(1)
			rev.Content = append([]byte(nil), rev.Content...)
			return rev, nil
		}
	}
	s.n.misses.Add(1)
	s.n.reads.Add(1)
	rev, err := s.origin.Load(ctx, runID, iteration, p)
	if err != nil {
		s.n.errs.Add(1)
		return artifactrepo.Revision{}, err
	}
	cached := rev
	cached.Content = append([]byte(nil), rev.Content...)
	s.revisions.Add(revKey(runID, rev.Iteration, p), cached)
	if iteration == 0 {
		s.latest.Add(pathKey(runID, p), rev.Iteration)
	}
	return rev, nil
}

func (s *CachedStore) List(ctx context.Context, q artifactrepo.Query) ([]artifactrepo.Entry, error) {
	q.RunID = strings.TrimSpace(q.RunID)
	key := queryKey(q)
	if es, ok := s.listings.Get(key); ok {
		s.n.hits.Add(1)
		return append([]artifactrepo.Entry(nil), es...), nil
	}
	s.n.misses.Add(1)
	s.n.reads.Add(1)
	es, err := s.origin.List(ctx, q)
	if err != nil {
		s.n.errs.Add(1)
		return nil, err
	}
	s.listings.Add(key, append([]artifactrepo.Entry(nil), es...))
	return es, nil
}

func (s *CachedStore) Stats() Stats {
	return Stats{
		Hits:         s.n.hits.Load(),
		Misses:       s.n.misses.Load(),
		OriginReads:  s.n.reads.Load(),
		OriginWrites: s.n.writes.Load(),
		OriginErrors: s.n.errs.Load(),
	}
}

func (s *CachedStore) dropListings(runID string) {
	prefix := runID + "|"
	for _, k := range s.listings.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.listings.Remove(k)
		}
	}
}

func normPath(p string) string {
	return strings.TrimLeft(strings.TrimSpace(p), "/")
}

func pathKey(runID, p string) string {
	return runID + "|" + p
}

func revKey(runID string, iteration int, p string) string {
	return runID + "|" + strconv.Itoa(iteration) + "|" + p
}

func queryKey(q artifactrepo.Query) string {
	return q.RunID + "|" + strconv.Itoa(q.Iteration) + "|" + q.Kind
}
