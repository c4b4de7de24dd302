// Package store holds the durable building blocks behind the vault catalog:
// the catalog file, per-vault metadata records, per-vault bbolt data stores and
// the active vault pointer. None of them know about each other; the catalog
// service orchestrates them.
package store

import (
	"errors"

	"github.com/vaultbook/vaultbook/internal/domain"
)

// Error variables for store operations
var (
	// ErrMetadataNotFound is returned when a vault has no metadata record
	ErrMetadataNotFound = errors.New("vault metadata not found")
	// ErrDataStoreNotFound is returned when a vault has no data store on disk
	ErrDataStoreNotFound = errors.New("vault data store not found")
	// ErrDataStoreExists is returned when allocating a data store that already exists
	ErrDataStoreExists = errors.New("vault data store already exists")
	// ErrCatalogCorrupted is returned when the catalog file cannot be parsed or fails its checksum
	ErrCatalogCorrupted = errors.New("catalog file is corrupted")
	// ErrMetadataCorrupted is returned when a metadata record cannot be parsed
	ErrMetadataCorrupted = errors.New("vault metadata is corrupted")
	// ErrCatalogLocked is returned when another process holds the data directory
	ErrCatalogLocked = errors.New("catalog is locked by another process")
	// ErrTransactionNotFound is returned when a transaction id is unknown to a data store
	ErrTransactionNotFound = errors.New("transaction not found")
)

// CatalogStore persists the ordered list of index entries as one atomic unit
type CatalogStore interface {
	// Load returns the persisted entries; a missing catalog is an empty one
	Load() ([]domain.VaultIndexEntry, error)
	// Save atomically replaces the persisted catalog
	Save(entries []domain.VaultIndexEntry) error
}

// MetadataStore persists one full VaultEntity record per vault
type MetadataStore interface {
	Save(v *domain.VaultEntity) error
	Load(id string) (*domain.VaultEntity, error)
	Exists(id string) bool
	Remove(id string) error
	// Scan returns every readable record plus the ids whose records could not be parsed
	Scan() ([]*domain.VaultEntity, []ScanFailure, error)
}

// ScanFailure describes a vault directory whose metadata could not be used
type ScanFailure struct {
	ID  string
	Err error
}

// DataStores allocates and opens the per-vault transaction stores
type DataStores interface {
	Create(id string) error
	Open(id string) (VaultDataStore, error)
	Exists(id string) bool
	Remove(id string) error
	// Orphans lists vault directories holding a data store but no metadata
	Orphans() ([]string, error)
}

// VaultDataStore is one vault's isolated transaction storage
type VaultDataStore interface {
	ReadAll() ([]domain.Transaction, error)
	WriteAll(txs []domain.Transaction) error
	Append(txs ...domain.Transaction) error
	Delete(txID string) error
	Count() (int, error)
	Close() error
}

// ActiveStore persists the active vault pointer independently of the catalog
type ActiveStore interface {
	// Load returns the active id, or "" when none is set
	Load() (string, error)
	// Save persists id; an empty id clears the pointer
	Save(id string) error
}
