package core

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"familytree/internal/infra/persistence/jsonfile"
	"familytree/internal/infra/persistence/memory"
	"familytree/pkg/domain"

	"github.com/google/go-cmp/cmp"
)

func TestSmithFamilyScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	seedSmiths(t, svc)

	john, err := svc.GetPerson(ctx, 1)
	if err != nil {
		t.Fatalf("get john: %v", err)
	}
	mary, _ := svc.GetPerson(ctx, 2)
	if !slices.Equal(john.SpouseIDs, []int{2}) || !slices.Equal(mary.SpouseIDs, []int{1}) {
		t.Fatalf("spouse sets not symmetric: %v %v", john.SpouseIDs, mary.SpouseIDs)
	}
	details, err := svc.PersonDetails(ctx, 3)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if diff := cmp.Diff([]string{"John Smith", "Mary Johnson"}, names(details.Parents)); diff != "" {
		t.Fatalf("parents (-want +got):\n%s", diff)
	}
	if len(details.Siblings) != 0 || len(details.Spouses) != 0 || len(details.Children) != 0 {
		t.Fatalf("unexpected relatives %+v", details)
	}
}

func TestSiblingsShareAParent(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	seedSmiths(t, svc)
	four := mustAdd(t, svc, PersonInput{Name: "Anna Smith"})
	five := mustAdd(t, svc, PersonInput{Name: "Ben Smith"})
	six := mustAdd(t, svc, PersonInput{Name: "Unrelated"})
	for _, child := range []int{four.ID, five.ID} {
		mustLink(t, svc, 1, child)
		mustLink(t, svc, 2, child)
	}
	d4, _ := svc.PersonDetails(ctx, four.ID)
	if diff := cmp.Diff([]string{"Michael Smith", "Ben Smith"}, names(d4.Siblings)); diff != "" {
		t.Fatalf("siblings of 4 (-want +got):\n%s", diff)
	}
	d6, _ := svc.PersonDetails(ctx, six.ID)
	if len(d6.Siblings) != 0 {
		t.Fatalf("unrelated person has siblings %v", names(d6.Siblings))
	}
	for _, s := range d4.Siblings {
		if s.ID == six.ID {
			t.Fatalf("unrelated person listed as sibling")
		}
	}
}

func TestReverseEdgeIsCycle(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	p := mustAdd(t, svc, PersonInput{Name: "P"})
	c := mustAdd(t, svc, PersonInput{Name: "C"})
	mustLink(t, svc, p.ID, c.ID)
	_, err := svc.AddParentChild(ctx, c.ID, p.ID)
	if !domain.IsValidation(err) || !errors.Is(err, domain.ErrCycle) {
		t.Fatalf("expected cycle validation error, got %v", err)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "cycle") {
		t.Fatalf("expected cycle message, got %v", err)
	}
}

func TestRemovePersonStripsReferences(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	seedSmiths(t, svc)
	if _, _, err := svc.RemovePerson(ctx, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	people, _ := svc.ListPeople(ctx, OrderByID)
	for _, p := range people {
		for _, set := range [][]int{p.ParentIDs, p.SpouseIDs, p.ChildIDs} {
			if slices.Contains(set, 1) {
				t.Fatalf("%s still references removed person: %+v", p.Name, p)
			}
		}
	}
	if _, err := svc.GetPerson(ctx, 1); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEditPersonWarnsOnInvertedLifespan(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc := NewInMemoryService(nil, WithLogger(logger))
	p := mustAdd(t, svc, PersonInput{Name: "Ada", BirthYear: intPtr(1900)})
	updated, res, err := svc.EditPerson(ctx, p.ID, PersonUpdate{DeathYear: intPtr(1850), BirthCity: strPtr(" London ")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if *updated.DeathYear != 1850 || *updated.BirthCity != "London" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if len(res.Warnings()) != 1 || res.Warnings()[0].Rule != lifespanRuleName {
		t.Fatalf("expected lifespan warning, got %+v", res)
	}
	if logger.count("warn") != 1 {
		t.Fatalf("expected one warning log, got %d", logger.count("warn"))
	}
	// Renaming leaves the years alone and must not warn again.
	_, res, err = svc.EditPerson(ctx, p.ID, PersonUpdate{Name: strPtr("Ada L")})
	if err != nil || len(res.Warnings()) != 0 {
		t.Fatalf("rename: %v %+v", err, res)
	}
}

func TestFailedOperationsLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	seedSmiths(t, svc)
	before := svc.Store().ExportState()
	attempts := []func() error{
		func() error { _, _, err := svc.AddPerson(ctx, PersonInput{Name: "  "}); return err },
		func() error { _, _, err := svc.EditPerson(ctx, 1, PersonUpdate{BirthYear: intPtr(1200)}); return err },
		func() error { _, _, err := svc.RemovePerson(ctx, 42); return err },
		func() error { _, err := svc.AddParentChild(ctx, 3, 1); return err },
		func() error { _, err := svc.AddSpouse(ctx, 1, 2); return err },
		func() error { _, err := svc.RemoveSpouse(ctx, 1, 3); return err },
		func() error { _, err := svc.RemoveParentChild(ctx, 3, 1); return err },
	}
	for i, attempt := range attempts {
		if err := attempt(); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	if diff := cmp.Diff(before, svc.Store().ExportState()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestUnlinkOperations(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	seedSmiths(t, svc)
	if _, err := svc.RemoveParentChild(ctx, 1, 3); err != nil {
		t.Fatalf("unlink parent: %v", err)
	}
	if _, err := svc.RemoveSpouse(ctx, 2, 1); err != nil {
		t.Fatalf("unlink spouse: %v", err)
	}
	details, _ := svc.PersonDetails(ctx, 3)
	if diff := cmp.Diff([]string{"Mary Johnson"}, names(details.Parents)); diff != "" {
		t.Fatalf("parents (-want +got):\n%s", diff)
	}
	john, _ := svc.GetPerson(ctx, 1)
	if len(john.SpouseIDs) != 0 || len(john.ChildIDs) != 0 {
		t.Fatalf("john still linked: %+v", john)
	}
}

func TestSaveLoadRoundTripThroughJSONFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "family_tree.json")
	svc := NewInMemoryService(nil, WithSnapshotStore(jsonfile.New(path)))
	seedSmiths(t, svc)
	if _, _, err := svc.RemovePerson(ctx, 3); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded := NewInMemoryService(nil, WithSnapshotStore(jsonfile.New(path)))
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(svc.Store().ExportState(), reloaded.Store().ExportState()); diff != "" {
		t.Fatalf("round trip (-saved +loaded):\n%s", diff)
	}
	// next_id survives, so ids are never reused after a reload.
	p := mustAdd(t, reloaded, PersonInput{Name: "Newcomer"})
	if p.ID != 4 {
		t.Fatalf("expected id 4 after reload, got %d", p.ID)
	}
	if reloaded.SnapshotLocation() != path {
		t.Fatalf("unexpected location %s", reloaded.SnapshotLocation())
	}
}

func TestLoadRejectsInconsistentFile(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	bad := domain.Snapshot{NextID: 3, People: []domain.Person{
		{ID: 1, Name: "A", ParentIDs: []int{}, SpouseIDs: []int{2}, ChildIDs: []int{}},
		{ID: 2, Name: "B", ParentIDs: []int{}, SpouseIDs: []int{}, ChildIDs: []int{}},
	}}
	if err := snapshots.Save(ctx, bad); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewInMemoryService(nil, WithSnapshotStore(snapshots))
	mustAdd(t, svc, PersonInput{Name: "Existing"})
	err := svc.Load(ctx)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || perr.Path != "memory" {
		t.Fatalf("expected persistence error with location, got %v", err)
	}
	if !domain.IsRuleViolation(err) {
		t.Fatalf("expected rule violation cause, got %v", err)
	}
	if people := svc.Store().ListPeople(); len(people) != 1 || people[0].Name != "Existing" {
		t.Fatalf("state replaced by rejected snapshot: %+v", people)
	}
}

func TestLoadRaisesNextIDWithWarning(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewSnapshotStore()
	_ = snapshots.Save(ctx, domain.Snapshot{NextID: 1, People: []domain.Person{{ID: 5, Name: "Five", ParentIDs: []int{}, SpouseIDs: []int{}, ChildIDs: []int{}}}})
	logger := &captureLogger{}
	svc := NewInMemoryService(nil, WithSnapshotStore(snapshots), WithLogger(logger))
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if logger.count("warn") != 1 {
		t.Fatalf("expected next_id warning")
	}
	if p := mustAdd(t, svc, PersonInput{Name: "Six"}); p.ID != 6 {
		t.Fatalf("expected id 6, got %d", p.ID)
	}
}

func TestLoadSaveWithoutBackend(t *testing.T) {
	svc := NewInMemoryService(nil)
	if err := svc.Load(context.Background()); !errors.Is(err, ErrNoSnapshotStore) {
		t.Fatalf("expected ErrNoSnapshotStore, got %v", err)
	}
	if err := svc.Save(context.Background()); !errors.Is(err, ErrNoSnapshotStore) {
		t.Fatalf("expected ErrNoSnapshotStore, got %v", err)
	}
	if svc.SnapshotLocation() != "" {
		t.Fatalf("expected empty location")
	}
}

func TestCheckReportsWholeState(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	mustAdd(t, svc, PersonInput{Name: "Backwards", BirthYear: intPtr(1950), DeathYear: intPtr(1900)})
	mustAdd(t, svc, PersonInput{Name: "Fine", BirthYear: intPtr(1950)})
	res, err := svc.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.HasBlocking() {
		t.Fatalf("consistent store reported blocking violations: %+v", res)
	}
	if len(res.Warnings()) != 1 || res.Warnings()[0].EntityID != 1 {
		t.Fatalf("expected one lifespan warning, got %+v", res)
	}
}
