package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/vaultbook/vaultbook/internal/domain"
)

const catalogVersion = 1

// catalogDocument is the persisted catalog format
type catalogDocument struct {
	Version   int                      `json:"version"`
	UpdatedAt time.Time                `json:"updated_at"`
	Checksum  string                   `json:"checksum"`
	Entries   []domain.VaultIndexEntry `json:"entries"`
}

// CatalogFile is the file-backed CatalogStore
type CatalogFile struct {
	path string
	now  func() time.Time
}

var _ CatalogStore = (*CatalogFile)(nil)

// NewCatalogFile returns a catalog stored at path
func NewCatalogFile(path string) *CatalogFile {
	return &CatalogFile{path: path, now: time.Now}
}

// Load reads and verifies the catalog. A missing file is an empty catalog.
func (c *CatalogFile) Load() ([]domain.VaultIndexEntry, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogCorrupted, err)
	}
	if doc.Version != catalogVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCatalogCorrupted, doc.Version)
	}

	sum, err := entriesChecksum(doc.Entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogCorrupted, err)
	}
	if sum != doc.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCatalogCorrupted)
	}

	seen := make(map[string]bool, len(doc.Entries))
	for _, e := range doc.Entries {
		if e.ID == "" || seen[e.ID] {
			return nil, fmt.Errorf("%w: missing or duplicate id %q", ErrCatalogCorrupted, e.ID)
		}
		seen[e.ID] = true
	}

	return doc.Entries, nil
}

// Save replaces the catalog in one atomic rename. Entries are written
// non-archived first in sort order so the file reads like the custom listing.
func (c *CatalogFile) Save(entries []domain.VaultIndexEntry) error {
	ordered := append([]domain.VaultIndexEntry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsArchived != b.IsArchived {
			return !a.IsArchived
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})

	sum, err := entriesChecksum(ordered)
	if err != nil {
		return err
	}

	doc := catalogDocument{
		Version:   catalogVersion,
		UpdatedAt: c.now().UTC(),
		Checksum:  sum,
		Entries:   ordered,
	}
	if doc.Entries == nil {
		doc.Entries = []domain.VaultIndexEntry{}
	}

	if err := writeJSONAtomic(c.path, doc); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// entriesChecksum hashes the canonical JSON encoding of the entries
func entriesChecksum(entries []domain.VaultIndexEntry) (string, error) {
	if entries == nil {
		entries = []domain.VaultIndexEntry{}
	}
	canonical, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog entries: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
