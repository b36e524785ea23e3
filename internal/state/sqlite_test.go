package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_OpenClose(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leapcql.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}
	defer store.Close()

	if store.Path() != path {
		t.Errorf("expected path %s, got %s", path, store.Path())
	}

	// Schema creation is idempotent across reopens
	if _, err := store.db.Exec(schemaSQL); err != nil {
		t.Errorf("schema not idempotent: %v", err)
	}
}

// --- Cache tests ---

func TestStore_CacheRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, hit, err := store.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	elm := []byte(`{"library":{}}`)
	if err := store.Put(ctx, "k1", elm); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	got, hit, err := store.Get(ctx, "k1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if string(got) != string(elm) {
		t.Errorf("expected %s, got %s", elm, got)
	}
}

func TestStore_PutReplacesEntry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k1", []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "k1", []byte("new")); err != nil {
		t.Fatal(err)
	}

	got, _, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("expected replaced entry, got %s", got)
	}

	n, err := store.CacheSize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestStore_Prune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "old", []byte("x")); err != nil {
		t.Fatal(err)
	}
	// Backdate the entry past the retention window
	if _, err := store.db.Exec(`UPDATE elm_cache SET created_at = ?`, time.Now().UTC().Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "fresh", []byte("y")); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned entry, got %d", removed)
	}

	if _, hit, _ := store.Get(ctx, "fresh"); !hit {
		t.Error("fresh entry should survive pruning")
	}
	if _, hit, _ := store.Get(ctx, "old"); hit {
		t.Error("old entry should be pruned")
	}
}

// --- Run lifecycle tests ---

func TestStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run ID")
	}
	if run.Status != RunStatusRunning {
		t.Errorf("expected running status, got %s", run.Status)
	}

	if err := store.FinishRun(ctx, run, 3, 0); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}
	if run.Status != RunStatusCompleted {
		t.Errorf("expected completed status, got %s", run.Status)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Libraries != 3 || runs[0].Errors != 0 {
		t.Errorf("unexpected counts: %+v", runs[0])
	}
	if runs[0].CompletedAt.IsZero() {
		t.Error("expected completed_at to be set")
	}
}

func TestStore_RunWithErrorsIsFailed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, run, 2, 1); err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
}

func TestStore_RecentRunsNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.StartRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Separate the timestamps
	if _, err := store.db.Exec(`UPDATE compile_runs SET started_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), first.ID); err != nil {
		t.Fatal(err)
	}
	second, err := store.StartRun(ctx)
	if err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Error("expected newest run first")
	}
}
