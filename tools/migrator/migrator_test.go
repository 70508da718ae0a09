package migrator

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("failed to check if table exists: %v", err)
	}
	return true
}

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

// =============================================================================
// Parser Tests
// =============================================================================

func TestParseMigration_Valid(t *testing.T) {
	content := "-- create the things table\n-- +migrate Up\nCREATE TABLE things (id TEXT);\n"

	migration, err := ParseMigration("001_create_things.sql", []byte(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if migration.Version != 1 {
		t.Errorf("expected version 1, got %d", migration.Version)
	}
	if migration.Name != "create_things" {
		t.Errorf("expected name 'create_things', got '%s'", migration.Name)
	}
	if migration.UpSQL != "CREATE TABLE things (id TEXT);" {
		t.Errorf("unexpected SQL: %q", migration.UpSQL)
	}
	if migration.NoTransaction {
		t.Error("expected transactional migration")
	}
}

func TestParseMigration_NoTransaction(t *testing.T) {
	content := "-- +migrate Up notransaction\nCREATE TABLE things (id TEXT);"

	migration, err := ParseMigration("002_things.sql", []byte(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !migration.NoTransaction {
		t.Error("expected notransaction flag")
	}
}

func TestParseMigration_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"bad filename", "create_things.sql", "-- +migrate Up\nSELECT 1;"},
		{"missing marker", "001_things.sql", "CREATE TABLE things (id TEXT);"},
		{"empty body", "001_things.sql", "-- +migrate Up\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMigration(tt.filename, []byte(tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMigrations_SortedAndGapChecked(t *testing.T) {
	fsys := migrationFS(map[string]string{
		"002_b.sql":  "-- +migrate Up\nCREATE TABLE b (id TEXT);",
		"001_a.sql":  "-- +migrate Up\nCREATE TABLE a (id TEXT);",
		"README.txt": "not a migration",
	})

	migrations, err := LoadMigrations(fsys, "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 || migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("unexpected migrations: %+v", migrations)
	}

	gapped := migrationFS(map[string]string{
		"001_a.sql": "-- +migrate Up\nCREATE TABLE a (id TEXT);",
		"003_c.sql": "-- +migrate Up\nCREATE TABLE c (id TEXT);",
	})
	if _, err := LoadMigrations(gapped, "migrations"); err == nil {
		t.Error("expected gap error")
	}
}

// =============================================================================
// Runner Tests
// =============================================================================

func TestRunMigrations_AppliesAndIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	fsys := migrationFS(map[string]string{
		"001_a.sql": "-- +migrate Up\nCREATE TABLE a (id TEXT);",
		"002_b.sql": "-- +migrate Up\nCREATE TABLE b (id TEXT);",
	})

	if err := RunMigrations(db, fsys, "migrations"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := RunMigrations(db, fsys, "migrations"); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	for _, table := range []string{"a", "b", "schema_migrations"} {
		if !tableExists(t, db, table) {
			t.Errorf("expected table %s to exist", table)
		}
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
}

func TestRunMigrations_FailedMigrationRollsBack(t *testing.T) {
	db := setupTestDB(t)
	fsys := migrationFS(map[string]string{
		"001_a.sql": "-- +migrate Up\nCREATE TABLE a (id TEXT);\nNOT VALID SQL;",
	})

	if err := RunMigrations(db, fsys, "migrations"); err == nil {
		t.Fatal("expected error")
	}
	if tableExists(t, db, "a") {
		t.Error("expected table a to be rolled back")
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}
}

func TestGetCurrentVersion_NoTable(t *testing.T) {
	db := setupTestDB(t)

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}
}
