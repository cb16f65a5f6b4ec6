package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk location used by create and validate. It holds one
// subdirectory per goose dialect, each carrying the same set of versions.
const DefaultDir = "pkg/migrate/migrations"

// EmbeddedDir selects the migrations compiled into the binary.
const EmbeddedDir = ""

// Dialects lists the goose dialects that ship migrations.
var Dialects = []string{"postgres", "sqlite3"}

//go:embed migrations/*/*.sql
var embedded embed.FS

// commands that would drop the licenses table and every record in it.
var refusedCommands = map[string]bool{"reset": true}

// DialectFor maps a configured DB driver to its goose dialect.
func DialectFor(driver string) string {
	if strings.EqualFold(driver, "sqlite") {
		return "sqlite3"
	}
	return "postgres"
}

// prepare points goose at the dialect and source. An empty dir reads the embedded set;
// an on-disk dir with a subdirectory named after the dialect reads that subdirectory.
func prepare(dialect, dir string) (string, error) {
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	if dir == EmbeddedDir {
		goose.SetBaseFS(embedded)
		return path.Join("migrations", dialect), nil
	}
	goose.SetBaseFS(nil)
	return dialectDir(dir, dialect), nil
}

func dialectDir(dir, dialect string) string {
	sub := filepath.Join(dir, dialect)
	if info, err := os.Stat(sub); err == nil && info.IsDir() {
		return sub
	}
	return dir
}

// dialectDirs returns the per-dialect subdirectories present under dir, or dir itself
// for a flat layout.
func dialectDirs(dir string) []string {
	var dirs []string
	for _, d := range Dialects {
		if sub := dialectDir(dir, d); sub != dir {
			dirs = append(dirs, sub)
		}
	}
	if len(dirs) == 0 {
		return []string{dir}
	}
	return dirs
}

// Run executes a goose command against db.
func Run(ctx context.Context, db *sql.DB, dialect, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if refusedCommands[command] {
		return fmt.Errorf("goose %s is disabled: license records are never deleted", command)
	}

	source, err := prepare(dialect, dir)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, source, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// CurrentVersion reports the applied schema version.
func CurrentVersion(db *sql.DB, dialect string) (int64, error) {
	if _, err := prepare(dialect, EmbeddedDir); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// MigrateToVersion moves the schema up or down to targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect, dir string, targetVersion string) error {
	target, err := strconv.ParseInt(strings.TrimSpace(targetVersion), 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", targetVersion)
	}

	source, err := prepare(dialect, dir)
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, source, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, source, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
