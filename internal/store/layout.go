package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File names inside the data directory
const (
	CatalogFileName  = "catalog.json"
	ActiveFileName   = "active.json"
	LockFileName     = "catalog.lock"
	VaultsDirName    = "vaults"
	MetadataFileName = "vault.json"
	DataFileName     = "data.db"

	dirMode  = 0o700
	fileMode = 0o600
)

// Layout resolves every path of a vaultbook data directory
type Layout struct {
	Root string
}

// NewLayout creates the data directory skeleton if it does not exist yet
func NewLayout(root string) (Layout, error) {
	if strings.TrimSpace(root) == "" {
		return Layout{}, fmt.Errorf("data directory cannot be empty")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(filepath.Join(root, VaultsDirName), dirMode); err != nil {
		return Layout{}, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Layout{Root: root}, nil
}

func (l Layout) CatalogPath() string { return filepath.Join(l.Root, CatalogFileName) }
func (l Layout) ActivePath() string  { return filepath.Join(l.Root, ActiveFileName) }
func (l Layout) LockPath() string    { return filepath.Join(l.Root, LockFileName) }
func (l Layout) VaultsDir() string   { return filepath.Join(l.Root, VaultsDirName) }

// VaultDir returns the directory holding one vault's metadata and data
func (l Layout) VaultDir(id string) string {
	return filepath.Join(l.VaultsDir(), id)
}

func (l Layout) MetadataPath(id string) string {
	return filepath.Join(l.VaultDir(id), MetadataFileName)
}

func (l Layout) DataPath(id string) string {
	return filepath.Join(l.VaultDir(id), DataFileName)
}

// validID rejects ids that would escape the vaults directory
func validID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid vault id: %q", id)
	}
	return nil
}

// removeVaultDirIfEmpty drops a vault directory once both files are gone
func (l Layout) removeVaultDirIfEmpty(id string) error {
	entries, err := os.ReadDir(l.VaultDir(id))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		// stale temp files from interrupted atomic writes do not keep a directory alive
		if !strings.HasPrefix(e.Name(), ".") {
			return nil
		}
	}
	return os.RemoveAll(l.VaultDir(id))
}
