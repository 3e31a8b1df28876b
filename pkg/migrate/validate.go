package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

type migrationFile struct {
	version int64
	name    string
}

// migrationFiles lists the .sql files in dir sorted by version. Malformed
// names and duplicate versions are errors.
func migrationFiles(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[int64]string{}
	var files []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, name)
		}
		seen[version] = name
		files = append(files, migrationFile{version: version, name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// ValidateDir checks migration filenames and that each file carries both
// goose sections. An empty directory is valid.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		full := filepath.Join(dir, f.name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}
		txt := string(b)
		upAt := strings.Index(txt, "-- +goose Up")
		downAt := strings.Index(txt, "-- +goose Down")
		switch {
		case upAt < 0:
			return fmt.Errorf("migration %q missing \"-- +goose Up\"", f.name)
		case downAt < 0:
			return fmt.Errorf("migration %q missing \"-- +goose Down\"", f.name)
		case downAt < upAt:
			return fmt.Errorf("migration %q has Down before Up", f.name)
		}
	}
	return nil
}
