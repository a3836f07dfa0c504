package core

import (
	"context"
	"errors"
	"time"

	"familytree/internal/blob"
	"familytree/internal/infra/persistence/memory"
	"familytree/pkg/domain"
)

const (
	opAddPerson         = "add_person"
	opEditPerson        = "edit_person"
	opRemovePerson      = "remove_person"
	opAddParentChild    = "add_parent_child"
	opRemoveParentChild = "remove_parent_child"
	opAddSpouse         = "add_spouse"
	opRemoveSpouse      = "remove_spouse"
	opGetPerson         = "get_person"
	opListPeople        = "list_people"
	opPersonDetails     = "person_details"
	opSearch            = "search"
	opRenderTree        = "render_tree"
	opRenderSubtree     = "render_subtree"
	opLoad              = "load"
	opSave              = "save"
	opCheck             = "check"
	opBackup            = "backup"
	opListBackups       = "list_backups"
	opRestore           = "restore"
)

// ErrNoSnapshotStore is returned by Load and Save when no backend is configured.
var ErrNoSnapshotStore = errors.New("no snapshot store configured")

// ErrNoBlobStore is returned by backup operations when no blob store is configured.
var ErrNoBlobStore = errors.New("no blob store configured")

// Service is the single entry point for family tree operations. It owns the
// Entity Store for the process lifetime and moves snapshots to and from the
// configured persistence backend at explicit checkpoints.
type Service struct {
	store     PersistentStore
	snapshots SnapshotStore
	blobs     blob.Store
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	clock     Clock
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used to wrap operations in spans.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the recorder notified of mutating operations.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSnapshotStore sets the backend used by Load and Save.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Service) { s.snapshots = store }
}

// WithBlobStore sets the blob store that holds backups.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) { s.blobs = store }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store evaluating
// the given rules engine. A nil engine selects the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// SnapshotLocation describes where Load and Save read and write.
func (s *Service) SnapshotLocation() string {
	if s.snapshots == nil {
		return ""
	}
	return s.snapshots.Location()
}

// run wraps fn with tracing, metrics, logging and auditing. fn returns the
// id of the affected person, or zero when there is none.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (int, error)) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
	} else {
		s.logger.Debug("operation completed", "operation", op, "duration", duration)
	}
	s.recordAudit(ctx, op, entityID, err, duration)
	return err
}

func (s *Service) recordAudit(ctx context.Context, op string, entityID int, err error, duration time.Duration) {
	target, ok := auditTargets[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    target.entity,
		Action:    target.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) logWarnings(op string, res Result) {
	for _, v := range res.Warnings() {
		s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "person_id", v.EntityID, "message", v.Message)
	}
}

func (s *Service) transact(ctx context.Context, op string, fn func(tx Transaction) error) (Result, error) {
	res, err := s.store.RunInTransaction(ctx, fn)
	if err == nil {
		s.logWarnings(op, res)
	}
	return res, err
}

// AddPerson validates the input and stores a new person under the next id.
func (s *Service) AddPerson(ctx context.Context, in PersonInput) (Person, Result, error) {
	var created Person
	var res Result
	err := s.run(ctx, opAddPerson, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opAddPerson, func(tx Transaction) error {
			created, err = tx.AddPerson(in)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// EditPerson applies a partial scalar update. Relationships are never changed.
func (s *Service) EditPerson(ctx context.Context, id int, update PersonUpdate) (Person, Result, error) {
	var updated Person
	var res Result
	err := s.run(ctx, opEditPerson, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opEditPerson, func(tx Transaction) error {
			updated, err = tx.UpdatePerson(id, update.Apply)
			return err
		})
		return id, err
	})
	return updated, res, err
}

// RemovePerson deletes a person and every relationship referencing them.
func (s *Service) RemovePerson(ctx context.Context, id int) (Person, Result, error) {
	var removed Person
	var res Result
	err := s.run(ctx, opRemovePerson, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opRemovePerson, func(tx Transaction) error {
			removed, err = tx.RemovePerson(id)
			return err
		})
		return id, err
	})
	return removed, res, err
}

// AddParentChild records parentID as a parent of childID.
func (s *Service) AddParentChild(ctx context.Context, parentID, childID int) (Result, error) {
	var res Result
	err := s.run(ctx, opAddParentChild, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opAddParentChild, func(tx Transaction) error {
			_, _, err := tx.AddParentChild(parentID, childID)
			return err
		})
		return childID, err
	})
	return res, err
}

// RemoveParentChild deletes an existing parent-child edge.
func (s *Service) RemoveParentChild(ctx context.Context, parentID, childID int) (Result, error) {
	var res Result
	err := s.run(ctx, opRemoveParentChild, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opRemoveParentChild, func(tx Transaction) error {
			return tx.RemoveParentChild(parentID, childID)
		})
		return childID, err
	})
	return res, err
}

// AddSpouse records a symmetric spouse relationship.
func (s *Service) AddSpouse(ctx context.Context, idA, idB int) (Result, error) {
	var res Result
	err := s.run(ctx, opAddSpouse, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opAddSpouse, func(tx Transaction) error {
			_, _, err := tx.AddSpouse(idA, idB)
			return err
		})
		return idA, err
	})
	return res, err
}

// RemoveSpouse deletes an existing spouse relationship.
func (s *Service) RemoveSpouse(ctx context.Context, idA, idB int) (Result, error) {
	var res Result
	err := s.run(ctx, opRemoveSpouse, func(ctx context.Context) (int, error) {
		var err error
		res, err = s.transact(ctx, opRemoveSpouse, func(tx Transaction) error {
			return tx.RemoveSpouse(idA, idB)
		})
		return idA, err
	})
	return res, err
}

// GetPerson returns the person with the given id.
func (s *Service) GetPerson(ctx context.Context, id int) (Person, error) {
	var person Person
	err := s.run(ctx, opGetPerson, func(context.Context) (int, error) {
		p, ok := s.store.GetPerson(id)
		if !ok {
			return id, domain.NotFoundError{Entity: EntityPerson, ID: id}
		}
		person = p
		return id, nil
	})
	return person, err
}

// ListPeople returns every person in the requested order.
func (s *Service) ListPeople(ctx context.Context, order ListOrder) ([]Person, error) {
	var people []Person
	err := s.run(ctx, opListPeople, func(ctx context.Context) (int, error) {
		return 0, s.store.View(ctx, func(v TransactionView) error {
			var err error
			people, err = ListPeople(v, order)
			return err
		})
	})
	return people, err
}

// PersonDetails returns a person together with their relatives.
func (s *Service) PersonDetails(ctx context.Context, id int) (Details, error) {
	var details Details
	err := s.run(ctx, opPersonDetails, func(ctx context.Context) (int, error) {
		return id, s.store.View(ctx, func(v TransactionView) error {
			var err error
			details, err = PersonDetails(v, id)
			return err
		})
	})
	return details, err
}

// Search returns people whose name contains query, ignoring case.
func (s *Service) Search(ctx context.Context, query string) ([]Person, error) {
	var people []Person
	err := s.run(ctx, opSearch, func(ctx context.Context) (int, error) {
		return 0, s.store.View(ctx, func(v TransactionView) error {
			people = Search(v, query)
			return nil
		})
	})
	return people, err
}

// RenderTree renders every root and their descendants as indented text.
func (s *Service) RenderTree(ctx context.Context) (string, error) {
	var out string
	err := s.run(ctx, opRenderTree, func(ctx context.Context) (int, error) {
		return 0, s.store.View(ctx, func(v TransactionView) error {
			out = RenderTree(v)
			return nil
		})
	})
	return out, err
}

// RenderSubtree renders rootID and their descendants.
func (s *Service) RenderSubtree(ctx context.Context, rootID int) (string, error) {
	var out string
	err := s.run(ctx, opRenderSubtree, func(ctx context.Context) (int, error) {
		return rootID, s.store.View(ctx, func(v TransactionView) error {
			var err error
			out, err = RenderSubtree(v, rootID)
			return err
		})
	})
	return out, err
}

// Load replaces the in-memory state with the snapshot from the configured
// backend. A missing snapshot yields an empty store; a corrupt or
// inconsistent one is a PersistenceError and leaves the state unchanged.
func (s *Service) Load(ctx context.Context) error {
	return s.run(ctx, opLoad, func(ctx context.Context) (int, error) {
		if s.snapshots == nil {
			return 0, ErrNoSnapshotStore
		}
		snapshot, err := s.snapshots.Load(ctx)
		if err != nil {
			return 0, err
		}
		if err := s.importSnapshot(ctx, snapshot, s.snapshots.Location()); err != nil {
			return 0, err
		}
		s.logger.Info("snapshot loaded", "location", s.snapshots.Location(), "people", len(snapshot.People))
		return 0, nil
	})
}

// Save writes the current state to the configured backend. On failure the
// in-memory state is untouched and remains usable.
func (s *Service) Save(ctx context.Context) error {
	return s.run(ctx, opSave, func(ctx context.Context) (int, error) {
		if s.snapshots == nil {
			return 0, ErrNoSnapshotStore
		}
		snapshot := s.store.ExportState()
		if err := s.snapshots.Save(ctx, snapshot); err != nil {
			return 0, err
		}
		s.logger.Info("snapshot saved", "location", s.snapshots.Location(), "people", len(snapshot.People))
		return 0, nil
	})
}

func (s *Service) importSnapshot(ctx context.Context, snapshot Snapshot, location string) error {
	maxID := 0
	for _, p := range snapshot.People {
		maxID = max(maxID, p.ID)
	}
	if len(snapshot.People) > 0 && snapshot.NextID <= maxID {
		s.logger.Warn("next_id below existing ids, raising", "location", location, "next_id", snapshot.NextID, "max_id", maxID)
	}
	if err := s.store.ImportState(ctx, snapshot); err != nil {
		var perr *domain.PersistenceError
		if errors.As(err, &perr) && perr.Path == "" {
			perr.Path = location
		}
		return err
	}
	return nil
}

// Check evaluates every built-in rule over the whole state, not only the
// people touched by a transaction.
func (s *Service) Check(ctx context.Context) (Result, error) {
	var res Result
	err := s.run(ctx, opCheck, func(ctx context.Context) (int, error) {
		return 0, s.store.View(ctx, func(v TransactionView) error {
			people := v.ListPeople()
			res.Violations = append(res.Violations, domain.CheckIntegrity(people, v.NextID())...)
			for _, p := range people {
				if violation, ok := lifespanViolation(p); ok {
					res.Violations = append(res.Violations, violation)
				}
			}
			return nil
		})
	})
	return res, err
}
