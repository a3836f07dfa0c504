package core

import (
	"context"
	"fmt"
	"strings"

	"familytree/internal/infra/persistence/jsonfile"
	"familytree/internal/infra/persistence/memory"
	"familytree/internal/infra/persistence/postgres"
	"familytree/internal/infra/persistence/sqlite"
	"familytree/pkg/domain"
)

// StorageDriver identifies a snapshot backend.
type StorageDriver string

const (
	StorageJSON     StorageDriver = "json"     // single JSON file (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMemory   StorageDriver = "memory"   // nothing persisted
)

// StorageOptions configures OpenSnapshotStore.
type StorageOptions struct {
	Driver StorageDriver
	// Path is the JSON or sqlite file.
	Path        string
	PostgresDSN string
}

// ParseStorageDriver accepts a driver name, ignoring case. Empty selects json.
func ParseStorageDriver(raw string) (StorageDriver, error) {
	switch d := StorageDriver(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return StorageJSON, nil
	case StorageJSON, StorageSQLite, StoragePostgres, StorageMemory:
		return d, nil
	default:
		return "", domain.ValidationError{Field: "storage", Message: fmt.Sprintf("unknown storage driver %q", raw)}
	}
}

// OpenSnapshotStore constructs the configured backend.
func OpenSnapshotStore(ctx context.Context, opts StorageOptions) (SnapshotStore, error) {
	driver, err := ParseStorageDriver(string(opts.Driver))
	if err != nil {
		return nil, err
	}
	switch driver {
	case StorageSQLite:
		return sqlite.New(ctx, opts.Path)
	case StoragePostgres:
		return postgres.New(ctx, opts.PostgresDSN)
	case StorageMemory:
		return memory.NewSnapshotStore(), nil
	default:
		return jsonfile.New(opts.Path), nil
	}
}
