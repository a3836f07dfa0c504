package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestServiceReportsToCollaborators(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	audit := &captureAudit{}
	tracer := NewJSONTracer(nil)
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := NewInMemoryService(nil,
		WithLogger(logger),
		WithMetricsRecorder(metrics),
		WithAuditRecorder(audit),
		WithTracer(tracer),
		WithClock(clock),
	)

	p := mustAdd(t, svc, PersonInput{Name: "Solo"})
	if _, err := svc.AddSpouse(ctx, p.ID, p.ID); err == nil {
		t.Fatalf("expected self spouse to fail")
	}
	if _, err := svc.Search(ctx, "s"); err != nil {
		t.Fatalf("search: %v", err)
	}

	wantOps := []observation{{opAddPerson, true}, {opAddSpouse, false}, {opSearch, true}}
	if len(metrics.obs) != len(wantOps) {
		t.Fatalf("observations = %+v", metrics.obs)
	}
	for i, want := range wantOps {
		if metrics.obs[i] != want {
			t.Fatalf("observation %d = %+v, want %+v", i, metrics.obs[i], want)
		}
	}
	if logger.count("error") != 1 || logger.count("debug") != 2 {
		t.Fatalf("unexpected log levels %+v", logger.entries)
	}

	// Reads are not audited.
	if len(audit.entries) != 2 {
		t.Fatalf("audit entries = %+v", audit.entries)
	}
	created, failed := audit.entries[0], audit.entries[1]
	if created.Entity != EntityPerson || created.Action != ActionCreate || created.EntityID != p.ID || created.Status != AuditStatusSuccess {
		t.Fatalf("unexpected create audit %+v", created)
	}
	if failed.Entity != EntityRelationship || failed.Status != AuditStatusError || failed.Error == "" {
		t.Fatalf("unexpected failure audit %+v", failed)
	}
	if created.Duration != time.Second {
		t.Fatalf("expected clock-driven duration, got %s", created.Duration)
	}

	spans := tracer.Entries()
	if len(spans) != 3 || spans[1].Operation != opAddSpouse || spans[1].Status != "error" {
		t.Fatalf("unexpected spans %+v", spans)
	}
}

func TestNoopCollaboratorsAreDefaults(t *testing.T) {
	svc := NewService(nil, WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithAuditRecorder(nil), WithClock(nil))
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("nil logger replaced default")
	}
	if _, ok := svc.metrics.(noopMetricsRecorder); !ok {
		t.Fatalf("nil metrics replaced default")
	}
	if _, ok := svc.tracer.(noopTracer); !ok {
		t.Fatalf("nil tracer replaced default")
	}
	if _, ok := svc.audit.(noopAuditRecorder); !ok {
		t.Fatalf("nil audit replaced default")
	}
	if svc.clock.Now().IsZero() {
		t.Fatalf("default clock returned zero time")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := NewInMemoryService(nil, WithMetricsRecorder(rec))
	mustAdd(t, svc, PersonInput{Name: "A"})
	_, _, _ = svc.AddPerson(context.Background(), PersonInput{Name: ""})
	rec.Observe(context.Background(), "", true, time.Second)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues(opAddPerson, "success")); got != 1 {
		t.Fatalf("success count = %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues(opAddPerson, "error")); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestZapLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core))
	logger.Debug("d", "k", 1)
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e", "error", errors.New("boom"))
	if logs.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if first.Message != "d" || first.ContextMap()["k"] != int64(1) {
		t.Fatalf("unexpected entry %+v", first)
	}
	_ = NewZapLogger(nil).Sync()
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "op")
	span.End(errors.New("bad"))
	span.End(nil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Operation != "op" || entry.Status != "error" || entry.Error != "bad" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestZapAuditRecorderWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	audit := NewZapAuditRecorder(&buf)
	svc := NewInMemoryService(nil, WithAuditRecorder(audit))
	ctx := context.Background()
	p, _, err := svc.AddPerson(ctx, PersonInput{Name: "Ann"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddParentChild(ctx, p.ID, p.ID); err == nil {
		t.Fatalf("expected self link to fail")
	}
	if err := audit.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two audit lines, got %q", buf.String())
	}
	var created, failed map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &failed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["logger"] != "audit" || created["operation"] != "add_person" || created["status"] != "success" || created["entity_id"] != float64(p.ID) {
		t.Fatalf("unexpected create entry %v", created)
	}
	if failed["status"] != "error" || failed["error"] == nil {
		t.Fatalf("unexpected failure entry %v", failed)
	}
}
