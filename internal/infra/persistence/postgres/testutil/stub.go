// Package testutil provides a fake database/sql driver standing in for
// Postgres in snapshot store tests. It understands the three statements the
// store issues against the state table: the DDL, the bucket upsert and the
// full-table select.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// StubConn holds the committed bucket rows and the statements seen so far.
// Upserts issued inside a transaction become visible on commit only.
type StubConn struct {
	mu      sync.Mutex
	Execs   []string
	Buckets map[string][]byte

	FailPing   bool
	FailBegin  bool
	FailUpsert bool
	FailQuery  bool
	FailCommit bool
	// RowsErr is returned by the row iterator after the last row.
	RowsErr error

	tx *stubTx
}

var stubSeq atomic.Int64

// NewStubDB registers a fresh driver and opens a sql.DB on it. Every handle
// opened from the returned DB shares one StubConn.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Buckets: make(map[string][]byte)}
	name := fmt.Sprintf("familytree-stubpg-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Bucket returns a copy of the committed payload for name.
func (c *StubConn) Bucket(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.Buckets[name]
	return append([]byte(nil), payload...), ok
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; the store never prepares statements.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stubpg: prepared statements unsupported")
}

// Close implements driver.Conn. Committed rows survive.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stubpg: connection refused")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, errors.New("stubpg: begin failed")
	}
	c.tx = &stubTx{conn: c, pending: map[string][]byte{}}
	return c.tx, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	switch statementKind(query) {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		if c.FailUpsert {
			return nil, errors.New("stubpg: upsert failed")
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("stubpg: upsert wants 2 args, got %d", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("stubpg: bucket must be text, got %T", args[0].Value)
		}
		payload, err := bytesValue(args[1].Value)
		if err != nil {
			return nil, err
		}
		if c.tx != nil {
			c.tx.pending[bucket] = payload
		} else {
			c.Buckets[bucket] = payload
		}
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("stubpg: unsupported statement %q", query)
	}
}

// QueryContext implements driver.QueryerContext. Rows come back ordered by
// bucket name.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if statementKind(query) != "SELECT" {
		return nil, fmt.Errorf("stubpg: unsupported query %q", query)
	}
	if c.FailQuery {
		return nil, errors.New("stubpg: query failed")
	}
	names := make([]string, 0, len(c.Buckets))
	for name := range c.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := &stubRows{err: c.RowsErr}
	for _, name := range names {
		rows.rows = append(rows.rows, []driver.Value{name, append([]byte(nil), c.Buckets[name]...)})
	}
	return rows, nil
}

func statementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func bytesValue(v driver.Value) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return append([]byte(nil), p...), nil
	case string:
		return []byte(p), nil
	default:
		return nil, fmt.Errorf("stubpg: payload must be bytes, got %T", v)
	}
}

type stubTx struct {
	conn    *StubConn
	pending map[string][]byte
}

func (t *stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tx = nil
	if c.FailCommit {
		return errors.New("stubpg: commit failed")
	}
	for bucket, payload := range t.pending {
		c.Buckets[bucket] = payload
	}
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	t.conn.tx = nil
	t.conn.mu.Unlock()
	return nil
}

type stubRows struct {
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
