package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<name>.sql and returns its path. The version is
// always newer than every migration already in dir.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigrationAt(dir, name, time.Now().UTC())
}

func createSQLMigrationAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeMigrationName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	latest, err := latestVersion(dir)
	if err != nil {
		return "", err
	}
	version := now.Format(versionLayout)
	if v, _ := strconv.ParseInt(version, 10, 64); v <= latest {
		// Clock is behind the newest file; step one second past it.
		prev, _ := time.Parse(versionLayout, strconv.FormatInt(latest, 10))
		version = prev.Add(time.Second).Format(versionLayout)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, safe))
	if _, err := os.Stat(fullpath); err == nil {
		return "", fmt.Errorf("migration already exists: %s", fullpath)
	}

	body := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`, safe)

	if err := os.WriteFile(fullpath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeMigrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func latestVersion(dir string) (int64, error) {
	files, err := migrationFiles(dir)
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, f := range files {
		if f.version > latest {
			latest = f.version
		}
	}
	return latest, nil
}
