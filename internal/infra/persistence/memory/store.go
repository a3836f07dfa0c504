// Package memory provides the in-memory Entity Store: person records keyed by
// id, mutated only inside transactions that commit all-or-nothing.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"familytree/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.Transaction     = (*transaction)(nil)
)

type (
	// Person aliases domain.Person for in-memory persistence operations.
	Person = domain.Person
	// Snapshot aliases domain.Snapshot, the export/import unit of the store.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	people map[int]Person
	nextID int
}

func newMemoryState() memoryState {
	return memoryState{people: make(map[int]Person), nextID: 1}
}

func (s memoryState) clone() memoryState {
	out := memoryState{people: make(map[int]Person, len(s.people)), nextID: s.nextID}
	for id, p := range s.people {
		out.people[id] = p.Clone()
	}
	return out
}

// sortedPeople returns deep copies ordered by ascending id.
func (s memoryState) sortedPeople() []Person {
	ids := make([]int, 0, len(s.people))
	for id := range s.people {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Person, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.people[id].Clone())
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{NextID: state.nextID, People: state.sortedPeople()}
}

// memoryStateFromSnapshot normalizes relationship sets and raises the id
// counter above the largest id. Integrity is checked separately.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	maxID := 0
	for _, p := range s.People {
		cp := p.Clone()
		cp.ParentIDs = domain.NormalizeIDs(cp.ParentIDs)
		cp.SpouseIDs = domain.NormalizeIDs(cp.SpouseIDs)
		cp.ChildIDs = domain.NormalizeIDs(cp.ChildIDs)
		state.people[cp.ID] = cp
		maxID = max(maxID, cp.ID)
	}
	state.nextID = max(s.NextID, maxID+1, 1)
	return state
}

// Store provides an in-memory transactional store for person records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. The
// snapshot must satisfy every relationship invariant; otherwise the current
// state is kept and a PersistenceError wrapping the violation is returned.
// A next_id at or below the largest id is raised to max(id)+1.
func (s *Store) ImportState(ctx context.Context, snapshot Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot = snapshot.Clone()
	for i := range snapshot.People {
		p := snapshot.People[i].Clone()
		if err := domain.NormalizePerson(&p); err != nil {
			return &domain.PersistenceError{Op: "import", Err: fmt.Errorf("person %d: %w", p.ID, err)}
		}
		snapshot.People[i] = p
	}
	state := memoryStateFromSnapshot(snapshot)
	if violations := domain.CheckIntegrity(snapshot.People, state.nextID); len(violations) > 0 {
		return &domain.PersistenceError{Op: "import", Err: domain.RuleViolationError{Result: Result{Violations: violations}}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// GetPerson returns a copy of the person with the given id.
func (s *Store) GetPerson(id int) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.people[id]
	if !ok {
		return Person{}, false
	}
	return p.Clone(), true
}

// ListPeople returns every person ordered by ascending id.
func (s *Store) ListPeople() []Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.sortedPeople()
}

// transaction represents a mutation set applied to a clone of the store state.
type transaction struct {
	state   memoryState
	changes []Change
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListPeople() []Person { return v.state.sortedPeople() }

func (v transactionView) FindPerson(id int) (Person, bool) {
	p, ok := v.state.people[id]
	if !ok {
		return Person{}, false
	}
	return p.Clone(), true
}

func (v transactionView) NextID() int { return v.state.nextID }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no rule blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindPerson exposes person lookup within the transaction scope.
func (tx *transaction) FindPerson(id int) (Person, bool) {
	p, ok := tx.state.people[id]
	if !ok {
		return Person{}, false
	}
	return p.Clone(), true
}

func (tx *transaction) mustFind(id int) (Person, error) {
	p, ok := tx.state.people[id]
	if !ok {
		return Person{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	return p, nil
}

// AddPerson validates the input and stores a new person under the next id.
func (tx *transaction) AddPerson(in domain.PersonInput) (Person, error) {
	p := Person{
		ID:        tx.state.nextID,
		Name:      in.Name,
		BirthYear: in.BirthYear,
		DeathYear: in.DeathYear,
		Gender:    in.Gender,
		BirthCity: in.BirthCity,
		BirthDate: in.BirthDate,
		DeathDate: in.DeathDate,
	}
	p = p.Clone()
	if err := domain.NormalizePerson(&p); err != nil {
		return Person{}, err
	}
	tx.state.people[p.ID] = p
	tx.state.nextID++
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionCreate, After: p.Clone()})
	return p.Clone(), nil
}

// UpdatePerson applies mutator to a copy of the person. The id and the
// relationship sets are restored afterwards so only scalar fields change.
func (tx *transaction) UpdatePerson(id int, mutator func(*Person) error) (Person, error) {
	current, err := tx.mustFind(id)
	if err != nil {
		return Person{}, err
	}
	before := current.Clone()
	working := current.Clone()
	if err := mutator(&working); err != nil {
		return Person{}, err
	}
	working.ID = id
	working.ParentIDs = before.Clone().ParentIDs
	working.SpouseIDs = before.Clone().SpouseIDs
	working.ChildIDs = before.Clone().ChildIDs
	if err := domain.NormalizePerson(&working); err != nil {
		return Person{}, err
	}
	tx.state.people[id] = working
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: working.Clone()})
	return working.Clone(), nil
}

// RemovePerson deletes the person and strips its id from every other record.
func (tx *transaction) RemovePerson(id int) (Person, error) {
	current, err := tx.mustFind(id)
	if err != nil {
		return Person{}, err
	}
	// Sweep every record rather than only the related ones so a reference
	// that slipped past symmetry is still cleared.
	for otherID, other := range tx.state.people {
		if otherID == id {
			continue
		}
		if !domain.ContainsID(other.ParentIDs, id) && !domain.ContainsID(other.SpouseIDs, id) && !domain.ContainsID(other.ChildIDs, id) {
			continue
		}
		before := other.Clone()
		other.ParentIDs = domain.RemoveID(other.ParentIDs, id)
		other.SpouseIDs = domain.RemoveID(other.SpouseIDs, id)
		other.ChildIDs = domain.RemoveID(other.ChildIDs, id)
		tx.state.people[otherID] = other
		tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: other.Clone()})
	}
	delete(tx.state.people, id)
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionDelete, Before: current.Clone()})
	return current.Clone(), nil
}

// AddParentChild links parentID as a parent of childID. Checks run in order:
// self reference, existence, duplicate edge, ancestry cycle.
func (tx *transaction) AddParentChild(parentID, childID int) (Person, Person, error) {
	if parentID == childID {
		return Person{}, Person{}, domain.ValidationError{Field: "child_id", Message: "Cannot create parent-child relationship with self", Err: domain.ErrSelfRelationship}
	}
	parent, err := tx.mustFind(parentID)
	if err != nil {
		return Person{}, Person{}, err
	}
	child, err := tx.mustFind(childID)
	if err != nil {
		return Person{}, Person{}, err
	}
	if domain.ContainsID(parent.ChildIDs, childID) || domain.ContainsID(child.ParentIDs, parentID) {
		return Person{}, Person{}, domain.ValidationError{
			Field:   "child_id",
			Message: fmt.Sprintf("Relationship already exists: %d is already a parent of %d", parentID, childID),
			Err:     domain.ErrDuplicateRelationship,
		}
	}
	if tx.isAncestor(childID, parentID) {
		return Person{}, Person{}, domain.ValidationError{
			Field:   "child_id",
			Message: fmt.Sprintf("Cannot create relationship: parent-child cycle, %d is an ancestor of %d", childID, parentID),
			Err:     domain.ErrCycle,
		}
	}

	parentBefore, childBefore := parent.Clone(), child.Clone()
	parent.ChildIDs = domain.InsertID(parent.ChildIDs, childID)
	child.ParentIDs = domain.InsertID(child.ParentIDs, parentID)
	tx.state.people[parentID] = parent
	tx.state.people[childID] = child
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: parentBefore, After: parent.Clone()})
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: childBefore, After: child.Clone()})
	return parent.Clone(), child.Clone(), nil
}

// RemoveParentChild drops an existing parent-child edge from both sides.
func (tx *transaction) RemoveParentChild(parentID, childID int) error {
	parent, err := tx.mustFind(parentID)
	if err != nil {
		return err
	}
	child, err := tx.mustFind(childID)
	if err != nil {
		return err
	}
	if !domain.ContainsID(parent.ChildIDs, childID) && !domain.ContainsID(child.ParentIDs, parentID) {
		return domain.NotFoundError{Entity: domain.EntityRelationship, Key: fmt.Sprintf("parent %d -> child %d", parentID, childID)}
	}
	parentBefore, childBefore := parent.Clone(), child.Clone()
	parent.ChildIDs = domain.RemoveID(parent.ChildIDs, childID)
	child.ParentIDs = domain.RemoveID(child.ParentIDs, parentID)
	tx.state.people[parentID] = parent
	tx.state.people[childID] = child
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: parentBefore, After: parent.Clone()})
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: childBefore, After: child.Clone()})
	return nil
}

// AddSpouse records a symmetric spouse relationship.
func (tx *transaction) AddSpouse(idA, idB int) (Person, Person, error) {
	if idA == idB {
		return Person{}, Person{}, domain.ValidationError{Field: "spouse_id", Message: "Cannot create spouse relationship with self", Err: domain.ErrSelfRelationship}
	}
	a, err := tx.mustFind(idA)
	if err != nil {
		return Person{}, Person{}, err
	}
	b, err := tx.mustFind(idB)
	if err != nil {
		return Person{}, Person{}, err
	}
	if domain.ContainsID(a.SpouseIDs, idB) || domain.ContainsID(b.SpouseIDs, idA) {
		return Person{}, Person{}, domain.ValidationError{
			Field:   "spouse_id",
			Message: fmt.Sprintf("Relationship already exists: %d and %d are already spouses", idA, idB),
			Err:     domain.ErrDuplicateRelationship,
		}
	}
	aBefore, bBefore := a.Clone(), b.Clone()
	a.SpouseIDs = domain.InsertID(a.SpouseIDs, idB)
	b.SpouseIDs = domain.InsertID(b.SpouseIDs, idA)
	tx.state.people[idA] = a
	tx.state.people[idB] = b
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: aBefore, After: a.Clone()})
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: bBefore, After: b.Clone()})
	return a.Clone(), b.Clone(), nil
}

// RemoveSpouse drops a spouse relationship from both sides.
func (tx *transaction) RemoveSpouse(idA, idB int) error {
	a, err := tx.mustFind(idA)
	if err != nil {
		return err
	}
	b, err := tx.mustFind(idB)
	if err != nil {
		return err
	}
	if !domain.ContainsID(a.SpouseIDs, idB) && !domain.ContainsID(b.SpouseIDs, idA) {
		return domain.NotFoundError{Entity: domain.EntityRelationship, Key: fmt.Sprintf("spouses %d <-> %d", idA, idB)}
	}
	aBefore, bBefore := a.Clone(), b.Clone()
	a.SpouseIDs = domain.RemoveID(a.SpouseIDs, idB)
	b.SpouseIDs = domain.RemoveID(b.SpouseIDs, idA)
	tx.state.people[idA] = a
	tx.state.people[idB] = b
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: aBefore, After: a.Clone()})
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: bBefore, After: b.Clone()})
	return nil
}

// isAncestor walks parent_ids upward from id and reports whether candidate
// is reached.
func (tx *transaction) isAncestor(candidate, id int) bool {
	visited := make(map[int]struct{})
	stack := []int{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		for _, parent := range tx.state.people[current].ParentIDs {
			if parent == candidate {
				return true
			}
			stack = append(stack, parent)
		}
	}
	return false
}
