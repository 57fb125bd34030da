package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationFS_PairedUpDown(t *testing.T) {
	entries, err := fs.ReadDir(MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no up file", base)
		}
	}
}

func TestMigrationFS_DefinesTables(t *testing.T) {
	var all strings.Builder
	err := fs.WalkDir(MigrationFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		b, err := fs.ReadFile(MigrationFS, path)
		all.Write(b)
		return err
	})
	if err != nil {
		t.Fatalf("WalkDir: %v", err)
	}
	for _, table := range []string{"identities", "challenge_answers", "validators", "validation_tickets",
		"risk_events", "auth_attempts", "audit_logs", "policies"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("no migration creates table %s", table)
		}
	}
	if !strings.Contains(all.String(), "WHERE status = 'pending'") {
		t.Error("validation_tickets should have a partial index over pending tickets")
	}
}
