package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

const upsert = "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"

func args(bucket, payload string) []driver.NamedValue {
	return []driver.NamedValue{{Ordinal: 1, Value: bucket}, {Ordinal: 2, Value: []byte(payload)}}
}

func TestStubUpsertReplacesBucket(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	for _, payload := range []string{`{"next_id":1}`, `{"next_id":2}`} {
		if _, err := conn.ExecContext(ctx, upsert, args("meta", payload)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got, ok := conn.Bucket("meta")
	if !ok || string(got) != `{"next_id":2}` || len(conn.Buckets) != 1 {
		t.Fatalf("expected single replaced bucket, got %q (%v)", got, conn.Buckets)
	}
}

func TestStubTransactionsApplyOnCommitOnly(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := conn.ExecContext(ctx, upsert, args("people", "[]")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, ok := conn.Bucket("people"); ok {
		t.Fatalf("uncommitted write is visible")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, ok := conn.Bucket("people"); ok {
		t.Fatalf("rolled back write is visible")
	}

	tx, _ = conn.BeginTx(ctx, driver.TxOptions{})
	_, _ = conn.ExecContext(ctx, upsert, args("people", "[]"))
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got, ok := conn.Bucket("people"); !ok || string(got) != "[]" {
		t.Fatalf("committed write missing: %q", got)
	}
}

func TestStubQueryOrdersBuckets(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.Buckets["people"] = []byte("[]")
	conn.Buckets["meta"] = []byte("{}")

	r, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = r.Close() }()
	dest := make([]driver.Value, 2)
	var order []string
	for r.Next(dest) == nil {
		order = append(order, dest[0].(string))
	}
	if len(order) != 2 || order[0] != "meta" || order[1] != "people" {
		t.Fatalf("unexpected row order %v", order)
	}
}

func TestStubRejectsUnknownStatements(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	if _, err := conn.ExecContext(ctx, "DELETE FROM state", nil); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
	if _, err := conn.QueryContext(ctx, "UPDATE state SET payload = 1", nil); err == nil {
		t.Fatalf("expected unsupported query error")
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: 1}, {Value: []byte("x")}}); err == nil {
		t.Fatalf("expected bucket type error")
	}
}

func TestStubFailureSwitches(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false
	conn.FailCommit = true
	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, _ = conn.ExecContext(ctx, upsert, args("meta", "{}"))
	if err := tx.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}
	if _, ok := conn.Bucket("meta"); ok {
		t.Fatalf("failed commit must not apply writes")
	}
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailUpsert = true
	if _, err := conn.ExecContext(ctx, upsert, args("meta", "{}")); err == nil {
		t.Fatalf("expected upsert failure")
	}
	conn.FailQuery = true
	if _, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil); err == nil {
		t.Fatalf("expected query failure")
	}
}
