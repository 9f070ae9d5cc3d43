package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"slatedeck/internal/domain"
	"slatedeck/internal/reconcile"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	st, err := OpenStore(root)
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, root
}

func TestOpenStoreCreatesSchemaAtCurrentVersion(t *testing.T) {
	st, _ := openTestStore(t)
	var schema int
	if err := st.DB.QueryRow(`SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema version = %d, want %d", schema, schemaVersion)
	}
	for _, table := range []string{"scene_records", "kv", "sync_log"} {
		var n int
		if err := st.DB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil || n != 1 {
			t.Fatalf("expected table %s to exist (n=%d err=%v)", table, n, err)
		}
	}
}

func TestOpenStoreIsExclusive(t *testing.T) {
	_, root := openTestStore(t)
	if _, err := OpenStore(root); !errors.Is(err, ErrStoreLocked) {
		t.Fatalf("second open should report ErrStoreLocked, got %v", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	root := t.TempDir()
	st, err := OpenStore(root)
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	kv := NewKVStore(st)
	ctx := context.Background()
	if err := kv.Set(ctx, "probe", []byte("value")); err != nil {
		t.Fatalf("kv set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := OpenStore(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, ok, err := NewKVStore(st2).Get(ctx, "probe")
	if err != nil || !ok || string(got) != "value" {
		t.Fatalf("kv after reopen = %q, %v, %v", got, ok, err)
	}
}

func TestKVGetMissingKey(t *testing.T) {
	st, _ := openTestStore(t)
	_, ok, err := NewKVStore(st).Get(context.Background(), "absent")
	if err != nil || ok {
		t.Fatalf("missing key should be ok=false without error, got %v, %v", ok, err)
	}
}

func TestSceneRecordRoundtrip(t *testing.T) {
	st, _ := openTestStore(t)
	scenes := NewSceneStore(st)
	ctx := context.Background()

	imported := time.Date(2025, 5, 2, 9, 30, 0, 123456789, time.UTC)
	rec := domain.SceneRecord{
		ID: "sc-1", Module: domain.ModuleScheduler, Number: "12A",
		SceneSlug: "WAREHOUSE", LocationType: "INT.", ScriptLocation: "WAREHOUSE",
		TimeOfDay: "NIGHT", SortIndex: 3, DisplayOrder: 3,
		PageNumber: 4, PageEighths: 19,
		ImportedAt: imported, UpdatedAt: imported, Flags: domain.ProvNew,
	}
	tx, err := scenes.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := scenes.ListScenes(ctx, domain.ModuleScheduler)
	if err != nil || len(got) != 1 {
		t.Fatalf("list = %v, %v", got, err)
	}
	r := got[0]
	if r.Number != "12A" || r.PageEighths != 19 || !r.Flags.IsNew() {
		t.Fatalf("record did not roundtrip: %+v", r)
	}
	if !r.ImportedAt.Equal(imported) {
		t.Fatalf("imported_at lost precision: %v != %v", r.ImportedAt, imported)
	}
	if !r.LastLocalEdit.IsZero() {
		t.Fatalf("zero last_local_edit must stay zero, got %v", r.LastLocalEdit)
	}
}

func TestMarkLocalEdit(t *testing.T) {
	st, _ := openTestStore(t)
	scenes := NewSceneStore(st)
	ctx := context.Background()

	imported := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	tx, err := scenes.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	rec := domain.SceneRecord{ID: "sc-2", Module: domain.ModuleShots, Number: "7",
		ImportedAt: imported, UpdatedAt: imported}
	if err := tx.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := scenes.MarkLocalEdit(ctx, "sc-2", imported.Add(time.Hour)); err != nil {
		t.Fatalf("mark local edit: %v", err)
	}
	got, err := scenes.ListScenes(ctx, domain.ModuleShots)
	if err != nil || len(got) != 1 {
		t.Fatalf("list = %v, %v", got, err)
	}
	if !got[0].HasLocalEdits() {
		t.Fatalf("record should report local edits: %+v", got[0])
	}
	if err := scenes.MarkLocalEdit(ctx, "ghost", time.Now()); err == nil {
		t.Fatalf("marking a missing record must fail")
	}
}

func TestSyncLogAppendAndList(t *testing.T) {
	st, _ := openTestStore(t)
	sl := NewSyncLog(st)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, rev := range []string{"rev-a", "rev-b", "rev-c"} {
		entry := reconcile.SyncEntry{
			RevisionID: rev, Module: domain.ModuleBreakdowns,
			Added: i, At: base.Add(time.Duration(i) * time.Minute),
		}
		if err := sl.AppendSync(ctx, entry); err != nil {
			t.Fatalf("append %s: %v", rev, err)
		}
	}

	got, err := sl.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].RevisionID != "rev-c" || got[1].RevisionID != "rev-b" {
		t.Fatalf("list should be most recent first and capped: %+v", got)
	}
	all, err := sl.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("unlimited list = %+v, %v", all, err)
	}
}
