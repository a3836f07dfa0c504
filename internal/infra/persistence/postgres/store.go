// Package postgres stores snapshots in a Postgres state table, one JSONB
// payload per bucket.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"familytree/internal/infra/persistence/sqlstate"
	"familytree/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/familytree?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a SnapshotStore over a Postgres database.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	dsn string
}

// New connects to dsn (DefaultDSN when empty), pings it and ensures the state
// table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Path: redact(dsn), Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.PersistenceError{Op: "open", Path: redact(dsn), Err: fmt.Errorf("ping postgres: %w", err)}
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, &domain.PersistenceError{Op: "open", Path: redact(dsn), Err: err}
	}
	return &Store{db: db, dsn: dsn}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Location returns the DSN with any password removed.
func (s *Store) Location() string { return redact(s.dsn) }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
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
			return domain.Snapshot{}, s.fail("load", fmt.Errorf("scan state: %w", err))
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
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	rows, err := sqlstate.Encode(snapshot)
	if err != nil {
		return s.fail("save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("save", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, row.Bucket, row.Payload); err != nil {
			return s.fail("save", fmt.Errorf("upsert %s: %w", row.Bucket, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("save", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

func (s *Store) fail(op string, err error) error {
	return &domain.PersistenceError{Op: op, Path: s.Location(), Err: err}
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
