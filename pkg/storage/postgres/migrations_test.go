package postgres

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":   {Data: []byte("SELECT 10")},
		"m/002_second.sql":  {Data: []byte("SELECT 2")},
		"m/001_first.sql":   {Data: []byte("SELECT 1")},
		"m/README.md":       {Data: []byte("notes")},
		"m/draft.sql":       {Data: []byte("SELECT 0")},
		"m/abc_unknown.sql": {Data: []byte("SELECT -1")},
	}

	got, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}

	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("loaded %d migrations, want %d: %+v", len(got), len(want), got)
	}
	for i, m := range got {
		if m.version != want[i] {
			t.Errorf("migrations[%d].version = %d, want %d", i, m.version, want[i])
		}
	}
	if got[2].name != "010_later.sql" || got[2].sql != "SELECT 10" {
		t.Errorf("migrations[2] = %+v", got[2])
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_a.sql": {Data: []byte("SELECT 1")},
		"m/1_b.sql":   {Data: []byte("SELECT 1")},
	}
	if _, err := loadMigrations(fsys, "m"); err == nil || !strings.Contains(err.Error(), "share version 1") {
		t.Errorf("err = %v, want duplicate version error", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := loadMigrations(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(got) < 2 || got[0].version != 1 || got[1].version != 2 {
		t.Fatalf("embedded migrations = %+v", got)
	}
	if !strings.Contains(got[0].sql, "client_credentials") || !strings.Contains(got[1].sql, "group_memberships") {
		t.Error("embedded migrations do not create the expected tables")
	}
}

func TestPostgres_MigrateIsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var n int
	if err := store.pool.QueryRow(ctx, "SELECT count(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("schema_migrations has %d rows, want 2", n)
	}
}
