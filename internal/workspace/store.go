// Package workspace persists generated artifacts under the workspace root and
// keeps the in-memory artifact set of a run.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"workeragent/internal/codeblock"
	"workeragent/internal/repository/artifact"
	"workeragent/internal/safeio"
)

var ErrMissingPath = errors.New("workspace: missing output path")

// Store writes artifacts to disk below a SafeFS root and optionally records
// each write as a revision of the run in an artifact.Store.
type Store struct {
	fs     *safeio.SafeFS
	mirror artifact.Store
	runID  string
	logger *log.Logger
}

type Option func(*Store)

// WithMirror records every successful write in m under runID, tagged with
// the round and kind it was written for.
func WithMirror(m artifact.Store, runID string) Option {
	return func(s *Store) {
		s.mirror = m
		s.runID = strings.TrimSpace(runID)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(fs *safeio.SafeFS, opts ...Option) *Store {
	s := &Store{fs: fs, logger: log.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Root() string { return s.fs.Root() }

// FS exposes the confined filesystem of the workspace.
func (s *Store) FS() *safeio.SafeFS { return s.fs }

// Write normalizes the header of content to "# <path>", writes it at path
// and returns what was written. Rewriting the same content is a no-op on disk.
func (s *Store) Write(ctx context.Context, iteration int, kind Kind, path, content string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrMissingPath
	}
	normalized := codeblock.WithHeader(path, content)
	if err := s.fs.SafeWriteFile(path, []byte(normalized)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if s.mirror != nil && s.runID != "" {
		rev := artifact.Revision{
			RunID:     s.runID,
			Iteration: iteration,
			Path:      path,
			Kind:      string(kind),
			Content:   []byte(normalized),
		}
		if err := s.mirror.Save(ctx, rev); err != nil {
			s.logger.Printf("workspace: mirror %s round %d %s failed: %v", s.runID, iteration, path, err)
		}
	}
	return normalized, nil
}

// Abs returns the on-disk location of a workspace-relative path.
func (s *Store) Abs(path string) (string, error) {
	return s.fs.Abs(path)
}
