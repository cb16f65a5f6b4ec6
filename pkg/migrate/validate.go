package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// License rows are an audit trail; forward migrations may not remove them.
	destructiveUpRe = regexp.MustCompile(`(?i)\b(delete\s+from|truncate(\s+table)?|drop\s+table(\s+if\s+exists)?)\s+"?licenses"?\b`)
)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks file naming, version uniqueness and goose markers, and rejects
// Up sections that would delete license records. When dir is split per dialect every
// subdirectory must carry the same versions.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	var (
		firstDir string
		first    map[string]string
	)
	for _, d := range dialectDirs(dir) {
		versions, err := validateFlat(d)
		if err != nil {
			return err
		}
		if first == nil {
			firstDir, first = d, versions
			continue
		}
		if err := sameVersions(firstDir, first, d, versions); err != nil {
			return err
		}
		if err := sameVersions(d, versions, firstDir, first); err != nil {
			return err
		}
	}
	return nil
}

func sameVersions(dirA string, a map[string]string, dirB string, b map[string]string) error {
	for version, name := range a {
		if _, ok := b[version]; !ok {
			return fmt.Errorf("migration %q in %q has no counterpart in %q", name, dirA, dirB)
		}
	}
	return nil
}

func validateFlat(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", name, err)
		}
		if err := validateBody(name, string(b)); err != nil {
			return nil, err
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("no migrations found in %q", dir)
	}
	return seen, nil
}

func validateBody(name, txt string) error {
	up := strings.Index(txt, upMarker)
	if up < 0 {
		return fmt.Errorf("migration %q missing %q", name, upMarker)
	}
	down := strings.Index(txt, downMarker)
	if down < 0 {
		return fmt.Errorf("migration %q missing %q", name, downMarker)
	}
	if down < up {
		return fmt.Errorf("migration %q has %q before %q", name, downMarker, upMarker)
	}
	if loc := destructiveUpRe.FindString(txt[up:down]); loc != "" {
		return fmt.Errorf("migration %q: up section must not remove license records (%s)", name, loc)
	}
	return nil
}
