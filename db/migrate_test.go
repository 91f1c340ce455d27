package db

import (
	"path/filepath"
	"testing"
)

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if err := Migrate(dbPath); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	// Second run has nothing to apply and must not fail.
	if err := Migrate(dbPath); err != nil {
		t.Fatalf("Migrate() on an up-to-date database error: %v", err)
	}
}
