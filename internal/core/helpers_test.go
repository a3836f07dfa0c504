package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"familytree/pkg/domain"
)

func intPtr(v int) *int { return &v }

func genderPtr(g Gender) *Gender { return &g }

func strPtr(s string) *string { return &s }

func mustAdd(t *testing.T, svc *Service, in PersonInput) Person {
	t.Helper()
	p, _, err := svc.AddPerson(context.Background(), in)
	if err != nil {
		t.Fatalf("add %s: %v", in.Name, err)
	}
	return p
}

func mustLink(t *testing.T, svc *Service, parentID, childID int) {
	t.Helper()
	if _, err := svc.AddParentChild(context.Background(), parentID, childID); err != nil {
		t.Fatalf("link %d -> %d: %v", parentID, childID, err)
	}
}

// seedSmiths builds John (1) and Mary (2), spouses, with son Michael (3).
func seedSmiths(t *testing.T, svc *Service) {
	t.Helper()
	john := mustAdd(t, svc, PersonInput{Name: "John Smith", BirthYear: intPtr(1950), Gender: genderPtr(domain.GenderMale)})
	mary := mustAdd(t, svc, PersonInput{Name: "Mary Johnson", BirthYear: intPtr(1952), Gender: genderPtr(domain.GenderFemale)})
	if _, err := svc.AddSpouse(context.Background(), john.ID, mary.ID); err != nil {
		t.Fatalf("spouse: %v", err)
	}
	michael := mustAdd(t, svc, PersonInput{Name: "Michael Smith", BirthYear: intPtr(1975), Gender: genderPtr(domain.GenderMale)})
	mustLink(t, svc, john.ID, michael.ID)
	mustLink(t, svc, mary.ID, michael.ID)
}

func names(people []Person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.Name)
	}
	return out
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type observation struct {
	operation string
	success   bool
}

type captureMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{operation: op, success: success})
}

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *captureAudit) Record(_ context.Context, e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
