package store

import (
	"context"
	"errors"
)

// StoreState represents the initialization state of the datastore.
type StoreState int

const (
	StateMissing         StoreState = iota // File doesn't exist
	StateUninitialized                     // File exists but no schema
	StateVersionMismatch                   // Schema exists but wrong version
	StateReady                             // Initialized and correct version
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StateVersionMismatch:
		return "version_mismatch"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// ErrNotOpen is returned by operations attempted before Open.
var ErrNotOpen = errors.New("database not opened")

// KeyValue is the durable key/value contract used by application state.
// Values are stored verbatim. Removing a missing key is not an error.
type KeyValue interface {
	// Get returns the value stored under key and whether it was found.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the entry for key.
	Remove(ctx context.Context, key string) error
}

// Store defines the backdrop datastore contract.
// Implementations must be safe for concurrent use.
type Store interface {
	KeyValue

	// Open opens the datastore connection
	Open() error

	// Close closes the datastore connection
	Close() error

	// InitSchema creates the initial schema and records version
	InitSchema(version string) error

	// Upgrade applies any missing migrations up to version
	Upgrade(version string) error

	// CheckState returns the current state of the datastore
	CheckState() (StoreState, error)

	// GetSchemaVersion returns the current schema version from the database
	GetSchemaVersion() (string, error)
}
