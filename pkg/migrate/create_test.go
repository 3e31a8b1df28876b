package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateSQLMigrationStepsPastNewestFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "20300101000000_future.sql")
	if err := os.WriteFile(existing, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	path, err := createSQLMigrationAt(dir, "add index", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if base := filepath.Base(path); base != "20300101000001_add_index.sql" {
		t.Fatalf("unexpected filename %s", base)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := createSQLMigrationAt(t.TempDir(), "!!!", time.Now()); err == nil {
		t.Fatal("expected error for name without usable characters")
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x ();\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_swapped.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := ValidateDir(dir)
	if err == nil || !strings.Contains(err.Error(), "Down before Up") {
		t.Fatalf("expected ordering error, got %v", err)
	}
}
