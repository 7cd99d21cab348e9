package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	artifactrepo "workeragent/internal/repository/artifact"
)

// countingStore records origin traffic on top of a MemoryStore.
type countingStore struct {
	*artifactrepo.MemoryStore
	loads, lists int
	failSave     bool
}

func (s *countingStore) Save(ctx context.Context, rev artifactrepo.Revision) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return s.MemoryStore.Save(ctx, rev)
}

func (s *countingStore) Load(ctx context.Context, runID string, iteration int, p string) (artifactrepo.Revision, error) {
	s.loads++
	return s.MemoryStore.Load(ctx, runID, iteration, p)
}

func (s *countingStore) List(ctx context.Context, q artifactrepo.Query) ([]artifactrepo.Entry, error) {
	s.lists++
	return s.MemoryStore.List(ctx, q)
}

func newCached() (*CachedStore, *countingStore) {
	origin := &countingStore{MemoryStore: artifactrepo.NewMemoryStore()}
	return NewCachedStore(origin, DefaultCacheConfig()), origin
}

func save(t *testing.T, s *CachedStore, iteration int, kind, p, content string) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), artifactrepo.Revision{
		RunID: "run-1", Iteration: iteration, Path: p, Kind: kind, Content: []byte(content),
	}))
}

func TestCachedStoreLatestFollowsNewestRound(t *testing.T) {
	ctx := context.Background()
	s, origin := newCached()
	save(t, s, 1, "code", "bot.py", "v1")
	save(t, s, 2, "code", "bot.py", "v2")

	rev, err := s.Load(ctx, "run-1", 0, "bot.py")
	require.NoError(t, err)
	require.Equal(t, 2, rev.Iteration)
	require.Equal(t, "v2", string(rev.Content))

	rev, err = s.Load(ctx, "run-1", 1, "bot.py")
	require.NoError(t, err)
	require.Equal(t, "v1", string(rev.Content))

	if origin.loads != 0 {
		t.Fatalf("origin loads = %d, want 0 for saved revisions", origin.loads)
	}
	st := s.Stats()
	require.Equal(t, uint64(2), st.Hits)
	require.Equal(t, uint64(2), st.OriginWrites)
}

func TestCachedStoreReadsThroughOnce(t *testing.T) {
	ctx := context.Background()
	s, origin := newCached()
	require.NoError(t, origin.MemoryStore.Save(ctx, artifactrepo.Revision{
		RunID: "run-1", Iteration: 3, Path: "bot.py", Kind: "code", Content: []byte("v3"),
	}))

	for i := 0; i < 3; i++ {
		rev, err := s.Load(ctx, "run-1", 0, "bot.py")
		require.NoError(t, err)
		require.Equal(t, 3, rev.Iteration)
	}
	_, err := s.Load(ctx, "run-1", 3, "bot.py")
	require.NoError(t, err)
	require.Equal(t, 1, origin.loads)
	require.Equal(t, uint64(1), s.Stats().Misses)
}

func TestCachedStoreListingsDropOnSave(t *testing.T) {
	ctx := context.Background()
	s, origin := newCached()
	save(t, s, 1, "code", "bot.py", "v1")
	save(t, s, 1, "requirements", "requirements.txt", "requests")

	code := artifactrepo.Query{RunID: "run-1", Kind: "code"}
	es, err := s.List(ctx, code)
	require.NoError(t, err)
	require.Len(t, es, 1)
	_, err = s.List(ctx, code)
	require.NoError(t, err)
	require.Equal(t, 1, origin.lists)

	save(t, s, 2, "test", "tests/test_bot.py", "t")
	save(t, s, 2, "code", "bot.py", "v2")

	es, err = s.List(ctx, code)
	require.NoError(t, err)
	require.Equal(t, 2, origin.lists)
	require.Equal(t, []artifactrepo.Entry{
		{Iteration: 1, Path: "bot.py", Kind: "code", Size: 2},
		{Iteration: 2, Path: "bot.py", Kind: "code", Size: 2},
	}, es)

	round2, err := s.List(ctx, artifactrepo.Query{RunID: "run-1", Iteration: 2})
	require.NoError(t, err)
	require.Len(t, round2, 2)
}

func TestCachedStoreFailedSaveIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, origin := newCached()
	origin.failSave = true

	err := s.Save(ctx, artifactrepo.Revision{RunID: "run-1", Iteration: 1, Path: "bot.py", Content: []byte("x")})
	if err == nil {
		t.Fatalf("expected save error")
	}
	_, err = s.Load(ctx, "run-1", 1, "bot.py")
	require.ErrorIs(t, err, artifactrepo.ErrNotFound)
	require.Equal(t, uint64(2), s.Stats().OriginErrors)
}

func TestCachedStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newCached()
	save(t, s, 1, "code", "bot.py", "v1")

	rev, err := s.Load(ctx, "run-1", 1, "bot.py")
	require.NoError(t, err)
	rev.Content[0] = 'X'

	again, err := s.Load(ctx, "run-1", 1, "bot.py")
	require.NoError(t, err)
	require.Equal(t, "v1", string(again.Content))
}
