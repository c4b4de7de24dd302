package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

type activeDocument struct {
	VaultID   string    `json:"vault_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveFile persists the active vault pointer in active.json
type ActiveFile struct {
	path string
}

var _ ActiveStore = (*ActiveFile)(nil)

// NewActiveFile returns the pointer file at path
func NewActiveFile(path string) *ActiveFile {
	return &ActiveFile{path: path}
}

// Load returns the persisted id. A missing or unreadable pointer means no active vault;
// reconciliation reassigns one from the catalog.
func (a *ActiveFile) Load() (string, error) {
	data, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active vault pointer: %w", err)
	}

	var doc activeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil
	}
	return doc.VaultID, nil
}

// Save persists id atomically; "" clears the pointer
func (a *ActiveFile) Save(id string) error {
	if id != "" {
		if err := validID(id); err != nil {
			return err
		}
	}
	doc := activeDocument{VaultID: id, UpdatedAt: time.Now().UTC()}
	if err := writeJSONAtomic(a.path, doc); err != nil {
		return fmt.Errorf("failed to write active vault pointer: %w", err)
	}
	return nil
}
