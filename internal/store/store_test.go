package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbook/vaultbook/internal/domain"
)

func newLayout(t *testing.T) Layout {
	t.Helper()
	layout, err := NewLayout(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return layout
}

func newTransaction(amount string) domain.Transaction {
	return domain.Transaction{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Date:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString(amount),
		Currency:  "EUR",
		Category:  "groceries",
		CreatedAt: time.Now().UTC(),
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	require.NoError(t, AtomicWriteFile(path, []byte("first")))
	require.NoError(t, AtomicWriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not survive a commit")
}

func TestAtomicWriter_AbortKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, AtomicWriteFile(path, []byte("original")))

	w, err := NewAtomicWriter(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("half-writ"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	_, err = w.Write([]byte("more"))
	assert.Error(t, err)
}

func TestCatalogFile_SaveLoad(t *testing.T) {
	layout := newLayout(t)
	cf := NewCatalogFile(layout.CatalogPath())

	entries, err := cf.Load()
	require.NoError(t, err)
	assert.Empty(t, entries, "missing catalog is an empty catalog")

	now := time.Now().UTC()
	in := []domain.VaultIndexEntry{
		{ID: "b", Name: "Bills", Type: domain.TypeCash, SortOrder: 1, LastModified: now},
		{ID: "z", Name: "Old", Type: domain.TypeCash, IsArchived: true, SortOrder: 0, LastModified: now},
		{ID: "a", Name: "Groceries", Type: domain.TypeShared, SortOrder: 0, LastModified: now},
	}
	require.NoError(t, cf.Save(in))

	out, err := cf.Load()
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "z"}, []string{out[0].ID, out[1].ID, out[2].ID})
}

func TestCatalogFile_DetectsCorruption(t *testing.T) {
	layout := newLayout(t)
	cf := NewCatalogFile(layout.CatalogPath())
	require.NoError(t, cf.Save([]domain.VaultIndexEntry{{ID: "a", Name: "Groceries", Type: domain.TypeCash}}))

	data, err := os.ReadFile(layout.CatalogPath())
	require.NoError(t, err)

	tampered := strings.Replace(string(data), "Groceries", "Groceriez", 1)
	require.NoError(t, os.WriteFile(layout.CatalogPath(), []byte(tampered), 0o600))
	_, err = cf.Load()
	assert.ErrorIs(t, err, ErrCatalogCorrupted)

	require.NoError(t, os.WriteFile(layout.CatalogPath(), data[:len(data)/2], 0o600))
	_, err = cf.Load()
	assert.ErrorIs(t, err, ErrCatalogCorrupted)
}

func TestMetadataFiles(t *testing.T) {
	layout := newLayout(t)
	mf := NewMetadataFiles(layout)

	v := &domain.VaultEntity{
		ID:       "v1",
		Name:     "Groceries",
		Type:     domain.TypeCash,
		Settings: &domain.CashSettings{Currency: "EUR"},
	}
	require.NoError(t, mf.Save(v))
	assert.True(t, mf.Exists("v1"))

	got, err := mf.Load("v1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Name)
	assert.IsType(t, &domain.CashSettings{}, got.Settings)

	_, err = mf.Load("missing")
	assert.ErrorIs(t, err, ErrMetadataNotFound)

	assert.Error(t, mf.Save(&domain.VaultEntity{ID: "../escape"}))

	// a corrupt record is reported, never dropped silently
	require.NoError(t, os.MkdirAll(layout.VaultDir("v2"), 0o700))
	require.NoError(t, os.WriteFile(layout.MetadataPath("v2"), []byte("{not json"), 0o600))
	// a directory without metadata is not a vault record
	require.NoError(t, os.MkdirAll(layout.VaultDir("v3"), 0o700))

	vaults, failures, err := mf.Scan()
	require.NoError(t, err)
	require.Len(t, vaults, 1)
	assert.Equal(t, "v1", vaults[0].ID)
	require.Len(t, failures, 1)
	assert.Equal(t, "v2", failures[0].ID)
	assert.ErrorIs(t, failures[0].Err, ErrMetadataCorrupted)

	require.NoError(t, mf.Remove("v1"))
	assert.False(t, mf.Exists("v1"))
	_, err = os.Stat(layout.VaultDir("v1"))
	assert.True(t, os.IsNotExist(err), "empty vault directory should be removed")
	require.NoError(t, mf.Remove("v1"), "removing twice is a no-op")
}

func TestBoltDataStores_Lifecycle(t *testing.T) {
	layout := newLayout(t)
	ds := NewBoltDataStores(layout)

	require.NoError(t, ds.Create("v1"))
	assert.ErrorIs(t, ds.Create("v1"), ErrDataStoreExists)
	assert.True(t, ds.Exists("v1"))

	_, err := ds.Open("nope")
	assert.ErrorIs(t, err, ErrDataStoreNotFound)

	s, err := ds.Open("v1")
	require.NoError(t, err)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	t1, t2 := newTransaction("-12.40"), newTransaction("100")
	require.NoError(t, s.Append(t1, t2))
	assert.ErrorIs(t, s.Append(t1), ErrTransactionExists)

	n, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, t1.ID, all[0].ID)
	assert.True(t, all[0].Amount.Equal(decimal.RequireFromString("-12.40")))

	require.NoError(t, s.Delete(t1.ID))
	assert.ErrorIs(t, s.Delete(t1.ID), ErrTransactionNotFound)

	require.NoError(t, s.WriteAll([]domain.Transaction{t1}))
	all, err = s.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, t1.ID, all[0].ID)

	bad := newTransaction("1")
	bad.Currency = ""
	assert.Error(t, s.Append(bad))

	require.NoError(t, s.Close())

	orphans, err := ds.Orphans()
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, orphans, "data store without metadata is an orphan")

	require.NoError(t, ds.Remove("v1"))
	assert.False(t, ds.Exists("v1"))
	require.NoError(t, ds.Remove("v1"))
}

func TestFileLock_ExcludesSecondHolder(t *testing.T) {
	layout := newLayout(t)

	first := NewFileLock(layout.LockPath())
	require.NoError(t, first.Lock(time.Second))
	assert.True(t, first.IsLocked())

	second := NewFileLock(layout.LockPath())
	assert.ErrorIs(t, second.Lock(100*time.Millisecond), ErrCatalogLocked)

	require.NoError(t, first.Unlock())
	assert.ErrorIs(t, first.Unlock(), ErrLockNotHeld)

	require.NoError(t, second.Lock(time.Second))
	require.NoError(t, second.Unlock())
}

func TestFileLock_HandoverKeepsSingleHolder(t *testing.T) {
	layout := newLayout(t)

	a := NewFileLock(layout.LockPath())
	require.NoError(t, a.Lock(time.Second))

	b := NewFileLock(layout.LockPath())
	acquired := make(chan error, 1)
	go func() { acquired <- b.Lock(3 * time.Second) }()

	// let b open the file and start polling before a releases it
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, a.Unlock())
	require.NoError(t, <-acquired)
	assert.True(t, b.IsLocked())

	_, err := os.Stat(layout.LockPath())
	require.NoError(t, err, "lock file must survive unlock")

	c := NewFileLock(layout.LockPath())
	assert.ErrorIs(t, c.Lock(200*time.Millisecond), ErrCatalogLocked)
	assert.False(t, c.IsLocked())

	require.NoError(t, b.Unlock())
	require.NoError(t, c.Lock(time.Second))
	require.NoError(t, c.Unlock())
}

func TestActiveFile(t *testing.T) {
	layout := newLayout(t)
	af := NewActiveFile(layout.ActivePath())

	id, err := af.Load()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, af.Save("v1"))
	id, err = af.Load()
	require.NoError(t, err)
	assert.Equal(t, "v1", id)

	require.NoError(t, af.Save(""))
	id, err = af.Load()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, os.WriteFile(layout.ActivePath(), []byte("garbage"), 0o600))
	id, err = af.Load()
	require.NoError(t, err)
	assert.Empty(t, id, "an unreadable pointer is treated as unset")
}
