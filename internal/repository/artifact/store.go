// Package artifact keeps the revision history of a run: every file the
// workspace wrote, per iteration, with its kind.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Revision is the content of one workspace file as written during one
// iteration of a run.
type Revision struct {
	RunID     string
	Iteration int
	Path      string
	Kind      string
	Content   []byte
}

// Entry describes a stored revision without its content.
type Entry struct {
	Iteration int
	Path      string
	Kind      string
	Size      int64
}

// Query selects revisions of one run. A zero Iteration and an empty Kind
// match everything.
type Query struct {
	RunID     string
	Iteration int
	Kind      string
}

// Store is the run history backend. Load with iteration 0 returns the latest
// revision of path.
type Store interface {
	Save(ctx context.Context, rev Revision) error
	Load(ctx context.Context, runID string, iteration int, path string) (Revision, error)
	List(ctx context.Context, q Query) ([]Entry, error)
}

var (
	ErrNotFound     = errors.New("artifact: revision not found")
	ErrInvalidRunID = errors.New("artifact: invalid run id")
	ErrInvalidPath  = errors.New("artifact: invalid path")
	ErrInvalidRound = errors.New("artifact: iteration must be positive")
)

// unkinded stands in for an empty kind in key layouts.
const unkinded = "_"

func validRunID(runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return runID, nil
}

// cleanPath returns the slash-separated relative form of p, rejecting paths
// that leave their root.
func cleanPath(p string) (string, error) {
	p = strings.TrimLeft(strings.TrimSpace(strings.ReplaceAll(p, `\`, "/")), "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return c, nil
}

func validate(rev Revision) (Revision, error) {
	var err error
	if rev.RunID, err = validRunID(rev.RunID); err != nil {
		return rev, err
	}
	if rev.Iteration < 1 {
		return rev, ErrInvalidRound
	}
	if rev.Path, err = cleanPath(rev.Path); err != nil {
		return rev, err
	}
	if strings.ContainsAny(rev.Kind, `/\`) {
		return rev, fmt.Errorf("artifact: invalid kind %q", rev.Kind)
	}
	return rev, nil
}

// revisionKey lays a revision out as "<run>/<iteration>/<kind>/<path>". The
// iteration is zero padded so keys sort by round.
func revisionKey(rev Revision) string {
	kind := rev.Kind
	if kind == "" {
		kind = unkinded
	}
	return rev.RunID + "/" + roundDir(rev.Iteration) + "/" + kind + "/" + rev.Path
}

func roundDir(iteration int) string {
	return fmt.Sprintf("%04d", iteration)
}

// parseKey is the inverse of revisionKey for a key relative to the run.
func parseKey(rel string) (Entry, bool) {
	parts := strings.SplitN(rel, "/", 3)
	if len(parts) != 3 {
		return Entry{}, false
	}
	it, err := strconv.Atoi(parts[0])
	if err != nil || it < 1 {
		return Entry{}, false
	}
	kind := parts[1]
	if kind == unkinded {
		kind = ""
	}
	return Entry{Iteration: it, Kind: kind, Path: parts[2]}, true
}

func (q Query) match(e Entry) bool {
	return (q.Iteration == 0 || e.Iteration == q.Iteration) && (q.Kind == "" || e.Kind == q.Kind)
}

// sortEntries orders by iteration, then path.
func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Iteration != es[j].Iteration {
			return es[i].Iteration < es[j].Iteration
		}
		return es[i].Path < es[j].Path
	})
}

// pick finds the entry for path in iteration, or the latest one when
// iteration is 0.
func pick(es []Entry, iteration int, p string) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range es {
		if e.Path != p || (iteration != 0 && e.Iteration != iteration) {
			continue
		}
		if !found || e.Iteration > best.Iteration {
			best, found = e, true
		}
	}
	return best, found
}

// Latest reduces entries to the newest revision of each path.
func Latest(es []Entry) []Entry {
	newest := map[string]Entry{}
	for _, e := range es {
		if cur, ok := newest[e.Path]; !ok || e.Iteration > cur.Iteration {
			newest[e.Path] = e
		}
	}
	out := make([]Entry, 0, len(newest))
	for _, e := range newest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
