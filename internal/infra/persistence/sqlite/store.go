// Package sqlite stores snapshots in a single SQLite table, one JSON payload
// per bucket.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"familytree/internal/infra/persistence/sqlstate"
	"familytree/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "family_tree.db"

var _ domain.SnapshotStore = (*Store)(nil)

// Store is a SnapshotStore over a SQLite database file.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// New opens (creating if needed) the database at path and ensures the state
// table exists.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, &domain.PersistenceError{Op: "open", Path: path, Err: fmt.Errorf("create dirs: %w", err)}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Path: path, Err: err}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, &domain.PersistenceError{Op: "open", Path: path, Err: fmt.Errorf("create state table: %w", err)}
	}
	return &Store{db: db, path: path}, nil
}

// Location returns the database path.
func (s *Store) Location() string { return s.path }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Load reads every bucket. An empty table yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.Snapshot{}, s.fail("load", fmt.Errorf("select state: %w", err))
	}
	defer func() { _ = rows.Close() }()
	var raws []sqlstate.Row
	for rows.Next() {
		var r sqlstate.Row
		if err := rows.Scan(&r.Bucket, &r.Payload); err != nil {
			return domain.Snapshot{}, s.fail("load", fmt.Errorf("scan: %w", err))
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, s.fail("load", fmt.Errorf("iterate state: %w", err))
	}
	snapshot, err := sqlstate.Decode(raws)
	if err != nil {
		return domain.Snapshot{}, s.fail("load", err)
	}
	return snapshot, nil
}

// Save upserts every bucket in one transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) (retErr error) {
	rows, err := sqlstate.Encode(snapshot)
	if err != nil {
		return s.fail("save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("save", fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, row.Bucket, row.Payload); err != nil {
			return s.fail("save", fmt.Errorf("upsert %s: %w", row.Bucket, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("save", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) fail(op string, err error) error {
	return &domain.PersistenceError{Op: op, Path: s.path, Err: err}
}
