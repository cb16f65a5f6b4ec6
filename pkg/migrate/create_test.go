package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationBumpsCollidingVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := createSQLMigrationAt(dir, "add owner index", now)
	require.NoError(t, err)
	second, err := createSQLMigrationAt(dir, "add notes column", now)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "20250301120000_add_owner_index.sql", filepath.Base(first[0]))
	assert.Equal(t, "20250301120001_add_notes_column.sql", filepath.Base(second[0]))
	require.NoError(t, ValidateDir(dir))

	body, err := os.ReadFile(second[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- add_notes_column")
}

func TestCreateSQLMigrationWritesEveryDialect(t *testing.T) {
	dir := t.TempDir()
	for _, d := range Dialects {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}
	// an older sqlite-only file still pushes the shared version forward
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := createSQLMigrationAt(filepath.Join(dir, "sqlite3"), "seed", now)
	require.NoError(t, err)

	paths, err := createSQLMigrationAt(dir, "add notes column", now)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "postgres", "20250301120001_add_notes_column.sql"), paths[0])
	assert.Equal(t, filepath.Join(dir, "sqlite3", "20250301120001_add_notes_column.sql"), paths[1])

	body, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(body), "(sqlite3)")
}

func TestValidateDirRequiresMatchingDialectVersions(t *testing.T) {
	dir := t.TempDir()
	for _, d := range Dialects {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	paths, err := createSQLMigrationAt(dir, "create licenses", now)
	require.NoError(t, err)
	require.NoError(t, ValidateDir(dir))

	require.NoError(t, os.Remove(paths[0]))
	_, err = createSQLMigrationAt(filepath.Join(dir, "postgres"), "other", now.Add(time.Hour))
	require.NoError(t, err)
	err = ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no counterpart")
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := createSQLMigrationAt(t.TempDir(), " !! ", time.Now())
	assert.Error(t, err)

	_, err = createSQLMigrationAt("", "licenses", time.Now())
	assert.Error(t, err)
}

func TestValidateBodyRejectsDestructiveUp(t *testing.T) {
	bad := "-- +goose Up\nDELETE FROM licenses WHERE active = false;\n-- +goose Down\n"
	assert.Error(t, validateBody("x.sql", bad))

	drop := "-- +goose Up\nDROP TABLE IF EXISTS licenses;\n-- +goose Down\n"
	assert.Error(t, validateBody("x.sql", drop))

	rollback := "-- +goose Up\nCREATE TABLE licenses (key TEXT);\n-- +goose Down\nDROP TABLE licenses;\n"
	assert.NoError(t, validateBody("x.sql", rollback))

	swapped := "-- +goose Down\n-- +goose Up\n"
	assert.Error(t, validateBody("x.sql", swapped))
}
