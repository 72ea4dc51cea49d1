package db

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest goose migration version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

const (
	dbFileName   = "shelf.db"
	lockFileName = "shelf.lock"
)

// ErrLocked is returned by Init when another process owns the store.
var ErrLocked = stderrors.New("library store is in use by another shelf process")

//go:embed migrations/*.sql
var migrations embed.FS

// Handle owns the SQLite connection and the process lock on the base directory.
type Handle struct {
	DB   *sql.DB
	Path string

	lock *flock.Flock
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/shelf.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.shelf.
// The returned handle holds an exclusive lock on baseDir/shelf.lock until Close.
func Init(baseDir string) (*Handle, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	lock := flock.New(filepath.Join(baseDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, dbFileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The store worker holds one transaction open across commands; a single
	// connection keeps every statement inside it.
	db.SetMaxOpenConns(1)

	h := &Handle{DB: db, Path: dbPath, lock: lock}

	if err := verifyWALMode(db); err != nil {
		_ = h.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		_ = h.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return h, nil
}

// Close closes the database and releases the store lock.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	var err error
	if h.DB != nil {
		err = h.DB.Close()
	}
	if h.lock != nil {
		if unlockErr := h.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// migrate applies the embedded goose migrations.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied goose migration version.
func SchemaVersion(db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("setting goose dialect: %w", err)
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}
