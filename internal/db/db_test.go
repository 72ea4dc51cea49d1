package db

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	h, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer h.Close()

	// Verify database file was created
	dbPath := filepath.Join(tmpDir, "shelf.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
	if h.Path != dbPath {
		t.Errorf("Path = %q, want %q", h.Path, dbPath)
	}

	// Verify WAL mode is active
	var journalMode string
	if err := h.DB.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	for _, table := range []string{"managed_games", "config"} {
		var name string
		err := h.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "nested", "path", ".shelf")

	h, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer h.Close()

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestInit_SecondOwnerLocked(t *testing.T) {
	tmpDir := t.TempDir()

	h, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := Init(tmpDir); !stderrors.Is(err, ErrLocked) {
		t.Fatalf("second Init() error = %v, want ErrLocked", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Lock released on Close
	h2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() after Close error = %v", err)
	}
	h2.Close()
}

func TestInit_MigrationIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	h1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	h1.Close()

	h2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer h2.Close()

	version, err := SchemaVersion(h2.DB)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("schema version after second Init = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestHandle_CloseNil(t *testing.T) {
	var h *Handle
	if err := h.Close(); err != nil {
		t.Errorf("Close() on nil handle = %v, want nil", err)
	}
}
