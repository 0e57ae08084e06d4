package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteBackend {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "levelup.db")
	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestSQLiteBackendContract(t *testing.T) {
	testBackendContract(t, openTestStore(t))
}

func TestSQLiteSetReplacesValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"one", "two", "three"} {
		if err := s.Set(ctx, "progress/u1", []byte(v)); err != nil {
			t.Fatalf("set %s: %v", v, err)
		}
	}

	got, err := s.Get(ctx, "progress/u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "three" {
		t.Errorf("value = %q, want three", got)
	}

	var rows int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM kv_records").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Errorf("kv_records rows = %d, want 1", rows)
	}
}

func TestRevisionsPrune(t *testing.T) {
	s := openTestStore(t)
	s.SetKeepRevisions(5)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := s.Set(ctx, "k", []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	// Another key's history is pruned independently.
	if err := s.Set(ctx, "other", []byte("x")); err != nil {
		t.Fatalf("set other: %v", err)
	}

	revs, err := s.Revisions(ctx, "k")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revs) != 5 {
		t.Fatalf("retained revisions = %d, want 5", len(revs))
	}
	if string(revs[0].Value) != "v6" {
		t.Errorf("newest revision value = %q, want v6", revs[0].Value)
	}
	for i := 1; i < len(revs); i++ {
		if revs[i].Revision >= revs[i-1].Revision {
			t.Errorf("revisions not newest-first: %d then %d", revs[i-1].Revision, revs[i].Revision)
		}
	}

	other, err := s.Revisions(ctx, "other")
	if err != nil {
		t.Fatalf("revisions other: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("other revisions = %d, want 1", len(other))
	}
}

func TestRevisionsFewerThanKeep(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Set(ctx, "k", []byte("v")); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}

	revs, err := s.Revisions(ctx, "k")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revs) != 2 {
		t.Errorf("revisions = %d, want 2", len(revs))
	}
}

func TestRevisionCounterMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Set(ctx, fmt.Sprintf("k%d", i), []byte("v")); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}

	var seqs []int64
	rows, err := s.DB().Query("SELECT revision FROM kv_records ORDER BY key")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r int64
		if err := rows.Scan(&r); err != nil {
			t.Fatalf("scan: %v", err)
		}
		seqs = append(seqs, r)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestRemoveDropsHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	revs, err := s.Revisions(ctx, "k")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revs) != 0 {
		t.Errorf("revisions after remove = %d, want 0", len(revs))
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range []string{"kv_records", "kv_revisions", "schema_meta", "global_revision"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestSchemaVersionRecorded(t *testing.T) {
	s := openTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "levelup.db")
	ctx := context.Background()

	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("persisted")); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = Open(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("value = %q, want persisted", got)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "levelup.db")

	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.DB().Exec("UPDATE schema_meta SET version = ?", SchemaVersion+1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	s.Close()

	_, err = Open(dsn)
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("open err = %v, want ErrSchemaTooNew", err)
	}
}
