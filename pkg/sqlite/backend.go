// Package sqlite provides the public API for the SQLite labledger backend.
// This package exposes the factory functions for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/labledger/internal/sqlite"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Backend is a durable types.Store whose database also carries a Wallet.
type Backend = sqlite.Backend

// Wallet is the SQLite-backed types.Escrow of a Backend.
type Wallet = sqlite.Wallet

// DatabaseFile is the name of the database created inside the data dir.
const DatabaseFile = sqlite.DatabaseFile

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".labledger-db",
//	})
//	defer backend.Detach()
func NewBackend() *Backend {
	return sqlite.NewBackend()
}

// Open creates a backend and attaches it to dataDir.
func Open(dataDir string) (*Backend, error) {
	b := sqlite.NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		return nil, err
	}
	return b, nil
}
