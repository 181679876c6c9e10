package archive

import (
	"context"
	"errors"
	"testing"

	appstate "github.com/goliatone/go-appstate"
)

func validFrozen(t *testing.T, route string) string {
	t.Helper()
	frozen, err := appstate.FrozenApp{
		Route:          route,
		GlobalState:    appstate.GlobalStateNone,
		PageStateStore: map[string]string{route: `{"count":1}`},
	}.Encode()
	if err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	return frozen
}

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	frozen := validFrozen(t, "/a")

	meta, err := store.Save(context.Background(), frozen, Meta{Extra: map[string]string{"device": "laptop"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID == "" || meta.ETag == "" {
		t.Fatalf("expected assigned identifiers, got %+v", meta)
	}
	if meta.CapturedAt.IsZero() {
		t.Fatal("expected capture time to be assigned")
	}

	loaded, loadedMeta, ok, err := store.Load(context.Background(), meta.SnapshotID)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded != frozen {
		t.Fatalf("unexpected snapshot %q", loaded)
	}
	if loadedMeta.Extra["device"] != "laptop" {
		t.Fatalf("expected extra metadata, got %+v", loadedMeta)
	}
}

func TestMemoryStoreLoadMisses(t *testing.T) {
	store := NewMemoryStore()
	if _, _, _, err := store.Load(context.Background(), ""); err == nil {
		t.Fatal("expected empty snapshot id to fail")
	}
	_, _, ok, err := store.Load(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expected a miss for an unknown id")
	}
}

func TestMemoryStoreLatest(t *testing.T) {
	store := NewMemoryStore()
	if _, _, ok, err := store.Latest(context.Background()); err != nil || ok {
		t.Fatalf("expected empty store to miss, ok=%v err=%v", ok, err)
	}

	first := validFrozen(t, "/first")
	second := validFrozen(t, "/second")
	if _, err := store.Save(context.Background(), first, Meta{}); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if _, err := store.Save(context.Background(), second, Meta{}); err != nil {
		t.Fatalf("save second: %v", err)
	}

	frozen, _, ok, err := store.Latest(context.Background())
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if frozen != second {
		t.Fatalf("expected most recent snapshot, got %q", frozen)
	}
}

func TestMemoryStoreSaveValidatesSnapshot(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Save(context.Background(), `{"broken`, Meta{}); err == nil {
		t.Fatal("expected malformed snapshot to be rejected")
	}
}

func TestMemoryStoreETagConflict(t *testing.T) {
	store := NewMemoryStore()
	frozen := validFrozen(t, "/a")

	meta, err := store.Save(context.Background(), frozen, Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Saving with the current ETag succeeds and rotates it.
	updated, err := store.Save(context.Background(), validFrozen(t, "/b"), Meta{SnapshotID: meta.SnapshotID, ETag: meta.ETag})
	if err != nil {
		t.Fatalf("conditional save: %v", err)
	}
	if updated.ETag == meta.ETag {
		t.Fatal("expected the etag to rotate on save")
	}

	// Saving with the stale ETag fails.
	_, err = store.Save(context.Background(), frozen, Meta{SnapshotID: meta.SnapshotID, ETag: meta.ETag})
	if !errors.Is(err, ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
}
