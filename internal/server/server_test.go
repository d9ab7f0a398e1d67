package server

import (
	"path/filepath"
	"testing"

	"github.com/stridemcp/stride/internal/config"
	"github.com/stridemcp/stride/internal/storage"
)

func TestNew_CreatesServerAndDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "stride-data")
	cfg := config.Config{DataDir: dataDir, ListLimit: 20, MaxNoteLength: 4000}

	s, cleanup, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cleanup()

	if s == nil {
		t.Fatal("server is nil")
	}

	// Storage must exist where config pointed.
	db, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("reopening storage: %v", err)
	}
	defer db.Close()

	// Both subsystems migrated.
	for _, table := range []string{"plans", "plan_steps", "notes", "decisions", "saved_contexts"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

func TestNew_CleanupIsIdempotentAfterFailure(t *testing.T) {
	// A data dir path that cannot be created forces an early failure;
	// the returned cleanup must still be callable.
	cfg := config.Config{DataDir: filepath.Join("/proc/nonexistent", "x"), ListLimit: 20, MaxNoteLength: 4000}

	_, cleanup, err := New(cfg)
	if err == nil {
		t.Skip("data dir unexpectedly creatable")
	}
	cleanup()
}
