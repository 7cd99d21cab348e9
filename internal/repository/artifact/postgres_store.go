package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const revisionSchema = `
CREATE TABLE IF NOT EXISTS run_revisions (
    run_id     TEXT NOT NULL,
    iteration  INTEGER NOT NULL,
    path       TEXT NOT NULL,
    kind       TEXT NOT NULL DEFAULT '',
    content    BYTEA NOT NULL,
    written_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    PRIMARY KEY (run_id, iteration, path)
);
CREATE INDEX IF NOT EXISTS idx_run_revisions_kind ON run_revisions(run_id, kind);
`

// PostgresStore keeps revisions in one table through the pgx database/sql
// driver.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("artifact: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifact: ping db: %w", err)
	}
	return NewPostgresStore(db), nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, revisionSchema)
	})
	return s.schemaErr
}

func (s *PostgresStore) Save(ctx context.Context, rev Revision) error {
	rev, err := validate(rev)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if rev.Content == nil {
		rev.Content = []byte{}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO run_revisions (run_id, iteration, path, kind, content)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id, iteration, path)
DO UPDATE SET kind = EXCLUDED.kind, content = EXCLUDED.content, written_at = NOW()
`, rev.RunID, rev.Iteration, rev.Path, rev.Kind, rev.Content)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, runID string, iteration int, p string) (Revision, error) {
	runID, err := validRunID(runID)
	if err != nil {
		return Revision{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return Revision{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Revision{}, err
	}
	rev := Revision{RunID: runID, Path: p}
	err = s.db.QueryRowContext(ctx, `
SELECT iteration, kind, content FROM run_revisions
WHERE run_id = $1 AND path = $2 AND ($3 = 0 OR iteration = $3)
ORDER BY iteration DESC LIMIT 1
`, runID, p, iteration).Scan(&rev.Iteration, &rev.Kind, &rev.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, ErrNotFound
	}
	if err != nil {
		return Revision{}, err
	}
	return rev, nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Entry, error) {
	runID, err := validRunID(q.RunID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT iteration, path, kind, octet_length(content) FROM run_revisions
WHERE run_id = $1 AND ($2 = 0 OR iteration = $2) AND ($3 = '' OR kind = $3)
ORDER BY iteration, path
`, runID, q.Iteration, q.Kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Iteration, &e.Path, &e.Kind, &e.Size); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
