package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

const sqlTemplate = `-- +goose Up
-- %[1]s (%[2]s)
-- Mirror this change in every dialect directory; licenses rows are never deleted.
-- +goose StatementBegin
SELECT 1;
-- +goose StatementEnd

-- +goose Down
-- rollback %[1]s
-- +goose StatementBegin
SELECT 1;
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<dialect>/<YYYYMMDDHHMMSS>_<name>.sql with a goose
// skeleton for each dialect subdirectory of dir, or a single file when dir is flat.
// Every file shares one version.
func CreateSQLMigration(dir string, name string) ([]string, error) {
	return createSQLMigrationAt(dir, name, time.Now().UTC())
}

func createSQLMigrationAt(dir, name string, now time.Time) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	safe := sanitizeMigrationName(name)
	if safe == "" {
		return nil, fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}

	dirs := dialectDirs(dir)
	version, err := nextVersion(dirs, now)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(dirs))
	for _, d := range dirs {
		fullpath := filepath.Join(d, fmt.Sprintf("%s_%s.sql", version, safe))
		if err := writeSkeleton(fullpath, safe, filepath.Base(d)); err != nil {
			return paths, err
		}
		paths = append(paths, fullpath)
	}
	return paths, nil
}

func writeSkeleton(fullpath, name, label string) error {
	f, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create migration %q: %w", fullpath, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, sqlTemplate, name, label); err != nil {
		return fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return nil
}

func sanitizeMigrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// nextVersion returns now formatted as a version, bumped past the newest existing file
// in any of dirs so two migrations created within one second still sort.
func nextVersion(dirs []string, now time.Time) (string, error) {
	candidate := now.Truncate(time.Second)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", fmt.Errorf("read dir %q: %w", dir, err)
		}
		for _, e := range entries {
			m := sqlFileRe.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			existing, err := time.Parse(versionLayout, m[1])
			if err != nil {
				continue
			}
			if !existing.Before(candidate) {
				candidate = existing.Add(time.Second)
			}
		}
	}
	return candidate.Format(versionLayout), nil
}
