package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"familytree/internal/blob"
	"familytree/internal/infra/persistence/jsonfile"
	"familytree/pkg/domain"

	"github.com/google/uuid"
)

// BackupPrefix is the key prefix under which backups are written.
const BackupPrefix = "backups/"

const backupTimeLayout = "20060102T150405Z"

// backupKey names a backup taken at the clock's current time. Keys sort in
// creation order.
func (s *Service) backupKey() string {
	return BackupPrefix + s.clock.Now().UTC().Format(backupTimeLayout) + "-" + uuid.NewString() + ".json"
}

// Backup writes the current state, in the JSON file format, to a new blob.
func (s *Service) Backup(ctx context.Context) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, opBackup, func(ctx context.Context) (int, error) {
		if s.blobs == nil {
			return 0, ErrNoBlobStore
		}
		snapshot := s.store.ExportState()
		data, err := jsonfile.Encode(snapshot)
		if err != nil {
			return 0, err
		}
		key := s.backupKey()
		info, err = s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
			ContentType: "application/json",
			Metadata: map[string]string{
				"people":  strconv.Itoa(len(snapshot.People)),
				"next_id": strconv.Itoa(snapshot.NextID),
			},
		})
		if err != nil {
			return 0, &domain.PersistenceError{Op: "backup", Path: key, Err: err}
		}
		s.logger.Info("backup written", "key", key, "driver", s.blobs.Driver(), "people", len(snapshot.People))
		return 0, nil
	})
	return info, err
}

// ListBackups returns every stored backup, oldest first.
func (s *Service) ListBackups(ctx context.Context) ([]blob.Info, error) {
	var out []blob.Info
	err := s.run(ctx, opListBackups, func(ctx context.Context) (int, error) {
		if s.blobs == nil {
			return 0, ErrNoBlobStore
		}
		infos, err := s.blobs.List(ctx, BackupPrefix)
		if err != nil {
			return 0, &domain.PersistenceError{Op: "list_backups", Path: BackupPrefix, Err: err}
		}
		out = infos
		return 0, nil
	})
	return out, err
}

// Restore replaces the in-memory state with a backup. key may omit the
// backups/ prefix. The restored state is not saved until Save is called.
func (s *Service) Restore(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key != "" && !strings.HasPrefix(key, BackupPrefix) {
		key = BackupPrefix + key
	}
	return s.run(ctx, opRestore, func(ctx context.Context) (int, error) {
		if s.blobs == nil {
			return 0, ErrNoBlobStore
		}
		if key == "" {
			return 0, domain.ValidationError{Field: "key", Message: "backup key is required"}
		}
		_, rc, err := s.blobs.Get(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			return 0, domain.NotFoundError{Entity: EntityBackup, Key: key}
		}
		if err != nil {
			return 0, &domain.PersistenceError{Op: "restore", Path: key, Err: err}
		}
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		if err != nil {
			return 0, &domain.PersistenceError{Op: "restore", Path: key, Err: err}
		}
		snapshot, err := jsonfile.Decode(data)
		if err != nil {
			return 0, &domain.PersistenceError{Op: "restore", Path: key, Err: err}
		}
		if err := s.importSnapshot(ctx, snapshot, key); err != nil {
			return 0, err
		}
		s.logger.Info("backup restored", "key", key, "people", len(snapshot.People))
		return 0, nil
	})
}
