package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"familytree/internal/core"
	"familytree/internal/infra/persistence/jsonfile"
	"familytree/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeThenSaveSavesAfterServeFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.json")
	svc := core.NewInMemoryService(nil, core.WithSnapshotStore(jsonfile.New(path)))
	_, _, err := svc.AddPerson(ctx, core.PersonInput{Name: "Ann"})
	require.NoError(t, err)

	var out bytes.Buffer
	a := &app{out: newPrinter(&out)}
	shutdown := errors.New("shutdown timed out")
	err = a.serveThenSave(ctx, svc, func(context.Context) error { return shutdown })
	require.ErrorIs(t, err, shutdown)
	assert.Contains(t, out.String(), "Saved to "+path)

	snap, err := jsonfile.New(path).Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.People, 1)
	assert.Equal(t, "Ann", snap.People[0].Name)
}

func TestServeThenSaveJoinsErrors(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	svc := core.NewInMemoryService(nil, core.WithSnapshotStore(jsonfile.New(filepath.Join(blocker, "tree.json"))))

	var out bytes.Buffer
	a := &app{out: newPrinter(&out)}
	shutdown := errors.New("listener closed")
	err := a.serveThenSave(ctx, svc, func(context.Context) error { return shutdown })
	require.ErrorIs(t, err, shutdown)
	assert.True(t, domain.IsPersistence(err))
	assert.NotContains(t, out.String(), "Saved to")

	out.Reset()
	require.NoError(t, a.serveThenSave(ctx, core.NewInMemoryService(nil, core.WithSnapshotStore(jsonfile.New(filepath.Join(t.TempDir(), "ok.json")))), func(context.Context) error { return nil }))
	assert.Contains(t, out.String(), "Saved to")
}
