package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore lays revisions out as files below root, one directory per run
// and per iteration: <root>/<run>/<iteration>/<kind>/<path>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: strings.TrimSpace(root)}
}

func (s *DiskStore) Save(_ context.Context, rev Revision) error {
	rev, err := validate(rev)
	if err != nil {
		return err
	}
	if s.root == "" {
		return errors.New("artifact: disk store root is empty")
	}
	full := filepath.Join(s.root, filepath.FromSlash(revisionKey(rev)))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	return os.WriteFile(full, rev.Content, 0o644)
}

func (s *DiskStore) Load(ctx context.Context, runID string, iteration int, p string) (Revision, error) {
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
	rev := Revision{RunID: runID, Iteration: e.Iteration, Path: e.Path, Kind: e.Kind}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(revisionKey(rev))))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Revision{}, ErrNotFound
		}
		return Revision{}, err
	}
	rev.Content = data
	return rev, nil
}

func (s *DiskStore) List(ctx context.Context, q Query) ([]Entry, error) {
	runID, err := validRunID(q.RunID)
	if err != nil {
		return nil, err
	}
	runRoot := filepath.Join(s.root, runID)
	var out []Entry
	err = filepath.WalkDir(runRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(runRoot, p)
		if err != nil {
			return err
		}
		e, ok := parseKey(filepath.ToSlash(rel))
		if !ok || !q.match(e) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			e.Size = info.Size()
		}
		out = append(out, e)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sortEntries(out)
	return out, nil
}
