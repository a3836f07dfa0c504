package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"familytree/internal/blob/core"
)

func TestRoundTripAndCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	meta := map[string]string{"k": "v"}
	if _, err := store.Put(ctx, "a/1", strings.NewReader("one"), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["k"] = "mutated"
	info, rc, err := store.Get(ctx, "a/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "one" || info.Metadata["k"] != "v" || info.ETag == "" {
		t.Fatalf("unexpected blob %q %+v", body, info)
	}
	info.Metadata["k"] = "changed"
	head, _ := store.Head(ctx, "a/1")
	if head.Metadata["k"] != "v" {
		t.Fatalf("metadata aliased store memory")
	}
}

func TestErrorsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Put(ctx, "", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Put(ctx, "x", bytes.NewReader(nil), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "x", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if ok, _ := store.Delete(ctx, "x"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := store.Delete(ctx, "x"); ok {
		t.Fatalf("expected second delete to report missing blob")
	}
	if _, err := store.Head(ctx, "x"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "x"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestListPrefixSortedConcurrent(t *testing.T) {
	ctx := context.Background()
	store := New()
	var wg sync.WaitGroup
	for _, key := range []string{"b/2", "b/1", "a/1", "b/3"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, _ = store.Put(ctx, k, strings.NewReader(k), core.PutOptions{})
		}(key)
	}
	wg.Wait()
	list, err := store.List(ctx, "b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	keys := make([]string, 0, len(list))
	for _, info := range list {
		keys = append(keys, info.Key)
	}
	if strings.Join(keys, ",") != "b/1,b/2,b/3" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
