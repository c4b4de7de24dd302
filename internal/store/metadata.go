package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/vaultbook/vaultbook/internal/domain"
)

// MetadataFiles stores each VaultEntity as vaults/<id>/vault.json
type MetadataFiles struct {
	layout Layout
}

var _ MetadataStore = (*MetadataFiles)(nil)

// NewMetadataFiles returns the metadata store of a data directory
func NewMetadataFiles(layout Layout) *MetadataFiles {
	return &MetadataFiles{layout: layout}
}

// Save writes the full entity record atomically
func (m *MetadataFiles) Save(v *domain.VaultEntity) error {
	if v == nil {
		return fmt.Errorf("vault cannot be nil")
	}
	if err := validID(v.ID); err != nil {
		return err
	}
	if err := writeJSONAtomic(m.layout.MetadataPath(v.ID), v); err != nil {
		return fmt.Errorf("failed to write metadata for vault %s: %w", v.ID, err)
	}
	return nil
}

// Load reads one vault's metadata record
func (m *MetadataFiles) Load(id string) (*domain.VaultEntity, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(m.layout.MetadataPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for vault %s: %w", id, err)
	}

	v := &domain.VaultEntity{}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("%w: vault %s: %v", ErrMetadataCorrupted, id, err)
	}
	if v.ID != id {
		return nil, fmt.Errorf("%w: vault %s: record carries id %q", ErrMetadataCorrupted, id, v.ID)
	}
	return v, nil
}

// Exists reports whether id has a metadata record on disk
func (m *MetadataFiles) Exists(id string) bool {
	if validID(id) != nil {
		return false
	}
	_, err := os.Stat(m.layout.MetadataPath(id))
	return err == nil
}

// Remove deletes the metadata record, and the vault directory once it is empty.
// Removing an absent record is not an error.
func (m *MetadataFiles) Remove(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(m.layout.MetadataPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove metadata for vault %s: %w", id, err)
	}
	if err := m.layout.removeVaultDirIfEmpty(id); err != nil {
		return fmt.Errorf("failed to remove vault directory %s: %w", id, err)
	}
	return nil
}

// Scan walks the vaults directory and loads every metadata record it finds.
// Directories without a metadata file are skipped; unreadable ones are reported.
func (m *MetadataFiles) Scan() ([]*domain.VaultEntity, []ScanFailure, error) {
	dirs, err := os.ReadDir(m.layout.VaultsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan vaults directory: %w", err)
	}

	var (
		vaults   []*domain.VaultEntity
		failures []ScanFailure
	)
	for _, d := range dirs {
		if !d.IsDir() || validID(d.Name()) != nil {
			continue
		}
		v, err := m.Load(d.Name())
		if errors.Is(err, ErrMetadataNotFound) {
			continue
		}
		if err != nil {
			failures = append(failures, ScanFailure{ID: d.Name(), Err: err})
			continue
		}
		vaults = append(vaults, v)
	}

	sort.Slice(vaults, func(i, j int) bool { return vaults[i].ID < vaults[j].ID })
	return vaults, failures, nil
}
