package domain

import "context"

// Transaction exposes the mutations a store must support within an atomic
// scope. Every operation keeps relationship sets symmetric; an error from any
// of them (or from the transaction function) discards the whole scope.
type Transaction interface {
	Snapshot() TransactionView
	AddPerson(PersonInput) (Person, error)
	UpdatePerson(id int, mutator func(*Person) error) (Person, error)
	RemovePerson(id int) (Person, error)
	AddParentChild(parentID, childID int) (Person, Person, error)
	RemoveParentChild(parentID, childID int) error
	AddSpouse(idA, idB int) (Person, Person, error)
	RemoveSpouse(idA, idB int) error
	FindPerson(id int) (Person, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListPeople() []Person
	FindPerson(id int) (Person, bool)
	NextID() int
}

// PersistentStore is the in-process owner of all person records.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPerson(id int) (Person, bool)
	ListPeople() []Person
	ExportState() Snapshot
	ImportState(ctx context.Context, snapshot Snapshot) error
}

// SnapshotStore loads and saves whole snapshots on a durable backend.
// Load returns EmptySnapshot when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
	Location() string
	Close() error
}
