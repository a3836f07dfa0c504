package memory

import (
	"context"
	"sync"

	"familytree/pkg/domain"
)

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps the last saved snapshot in memory. It backs the
// "memory" storage driver, where nothing outlives the process.
type SnapshotStore struct {
	mu    sync.Mutex
	saved *domain.Snapshot
}

// NewSnapshotStore returns a store with nothing saved.
func NewSnapshotStore() *SnapshotStore { return &SnapshotStore{} }

func (s *SnapshotStore) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return domain.EmptySnapshot(), nil
	}
	return s.saved.Clone(), nil
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clone := snapshot.Clone()
	s.mu.Lock()
	s.saved = &clone
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Location() string { return "memory" }

func (s *SnapshotStore) Close() error { return nil }
