// Package sqlite implements the SQLite storage backend for labledger: a
// durable types.Store for ledger state and a Wallet escrow whose balances
// and transfer journal live in the same database file.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// DatabaseFile is the name of the database inside DataDir.
const DatabaseFile = "ledger.db"

// busyTimeoutMillis is how long a statement waits on a locked database.
const busyTimeoutMillis = 5000

// Backend owns the SQLite connection. Attach opens it, Detach closes it.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (or creates) DataDir/ledger.db and applies the schema.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return fmt.Errorf("%w: sqlite backend cannot serve %q", types.ErrBackendUnknown, config.Backend)
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(filepath.Join(dataDir, DatabaseFile)))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. Idempotent. After Detach every operation
// returns ErrStoreClosed.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// Close implements types.Store by detaching.
func (b *Backend) Close() error {
	return b.Detach()
}

// Path returns the database file path of an attached backend.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dataDir := b.config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, DatabaseFile)
}

// conn returns the open database or ErrStoreClosed.
func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreClosed
	}
	return b.db, nil
}

// dsn builds a modernc.org/sqlite connection string with the pragmas the
// backend relies on.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	// BEGIN IMMEDIATE: every transaction holds the write lock from its first
	// statement, so processes sharing the file serialize.
	q.Add("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func applySchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}
