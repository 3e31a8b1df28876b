package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/smartpark-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestSchemaMigrationsContainStatements(t *testing.T) {
	cases := map[string][]string{
		"create_profiles_table": {
			"CREATE TABLE IF NOT EXISTS profiles",
			"CHECK (role IN ('owner', 'user'))",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_email",
		},
		"create_parks_table": {
			"CREATE TABLE IF NOT EXISTS parks",
			"owner_id text NOT NULL REFERENCES profiles (id)",
			"hourly_rate numeric(12,2)",
			"camera_rtsp_url_encrypted text",
		},
		"create_slots_table": {
			"CREATE TABLE IF NOT EXISTS slots",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_park_slot_number ON slots (park_id, slot_number)",
			"position integer NOT NULL",
		},
		"create_bookings_table": {
			"CREATE TABLE IF NOT EXISTS bookings",
			"CHECK (status IN ('active', 'completed', 'cancelled'))",
			"closed_at timestamptz",
			"WHERE status = 'active'",
		},
		"create_logs_table": {
			"CREATE TABLE IF NOT EXISTS logs",
			"CHECK (event_type IN ('entry', 'exit', 'alert'))",
			"ON DELETE SET NULL",
			"CREATE INDEX IF NOT EXISTS idx_logs_park_timestamp",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_missing_down.sql"), []byte("-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section error")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payment Link!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payment_link.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}
