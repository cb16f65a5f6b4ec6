package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/licensegate/pkg/migrate"
)

func TestLicensesMigrationContainsSchema(t *testing.T) {
	common := []string{
		"CREATE TABLE IF NOT EXISTS licenses",
		"key TEXT PRIMARY KEY",
		"active BOOLEAN NOT NULL DEFAULT TRUE",
		"CREATE INDEX IF NOT EXISTS idx_licenses_owner_created ON licenses (owner, created_at)",
		"DROP TABLE IF EXISTS licenses",
	}
	// the sqlite3 driver only decodes time columns declared exactly TIMESTAMP, DATETIME or DATE
	timestamps := map[string][]string{
		"postgres": {"created_at TIMESTAMPTZ NOT NULL", "expires_at TIMESTAMPTZ,"},
		"sqlite3":  {"created_at TIMESTAMP NOT NULL", "expires_at TIMESTAMP,"},
	}

	for _, dialect := range migrate.Dialects {
		matches, err := filepath.Glob(filepath.Join("migrations", dialect, "*_create_licenses.sql"))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) == 0 {
			t.Fatalf("no %s licenses migration file found", dialect)
		}

		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		content := string(data)

		for _, sub := range append(common, timestamps[dialect]...) {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", dialect, sub)
			}
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_licenses.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationSanitisesName(t *testing.T) {
	dir := t.TempDir()
	paths, err := migrate.CreateSQLMigration(dir, "Add Licenses Notes!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "_add_licenses_notes.sql") {
		t.Fatalf("unexpected paths %v", paths)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestDialectFor(t *testing.T) {
	if got := migrate.DialectFor("SQLite"); got != "sqlite3" {
		t.Fatalf("unexpected dialect %s", got)
	}
	if got := migrate.DialectFor("postgres"); got != "postgres" {
		t.Fatalf("unexpected dialect %s", got)
	}
}
