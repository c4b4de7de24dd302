package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/config"
	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
	"github.com/vaultbook/vaultbook/internal/util"
)

// fakeClipboard records what commands copy
type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *fakeClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

// TestHelper provides common test utilities
type TestHelper struct {
	TempDir    string
	ConfigPath string
	DataDir    string
	Config     *config.Config
	Clipboard  *fakeClipboard
}

// NewTestHelper creates a config file pointing at a temporary data directory
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	tempDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(tempDir, "data")
	cfg.LockTimeout = 200 * time.Millisecond
	cfg.ClipboardTTL = 0
	cfg.Log.Level = "error"

	h := &TestHelper{
		TempDir:    tempDir,
		ConfigPath: filepath.Join(tempDir, "config.yaml"),
		DataDir:    cfg.DataDir,
		Config:     cfg,
		Clipboard:  &fakeClipboard{},
	}
	require.NoError(t, config.SaveConfig(cfg, h.ConfigPath))
	return h
}

// RunWithInput executes one command line against a fresh command tree
func (h *TestHelper) RunWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	a := newApp()
	a.clipboard = h.Clipboard
	cmd := newRootCommand(a)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.ConfigPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// Run executes one command line with empty stdin
func (h *TestHelper) Run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return h.RunWithInput(t, "", args...)
}

// MustRun executes one command line and fails the test on error
func (h *TestHelper) MustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.Run(t, args...)
	require.NoError(t, err, "vaultbook %s", strings.Join(args, " "))
	return out
}

// Vaults returns the JSON listing including archived vaults
func (h *TestHelper) Vaults(t *testing.T) []vaultView {
	t.Helper()
	var views []vaultView
	out := h.MustRun(t, "list", "--archived", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	return views
}

func (h *TestHelper) vaultNamed(t *testing.T, name string) vaultView {
	t.Helper()
	for _, v := range h.Vaults(t) {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("vault %q not listed", name)
	return vaultView{}
}

func names(views []vaultView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}

func TestCreateAndList(t *testing.T) {
	h := NewTestHelper(t)

	out := h.MustRun(t, "create", "Daily cash")
	assert.Contains(t, out, "✓ Vault 'Daily cash' created")
	assert.Contains(t, out, "Active vault is now 'Daily cash'")

	out = h.MustRun(t, "create", "Buffer", "--type", "anti-fragile", "--buffer-target", "5000", "--reserve-pct", "20")
	assert.NotContains(t, out, "Active vault is now")

	out = h.MustRun(t, "list")
	assert.Contains(t, out, "Daily cash")
	assert.Contains(t, out, "Anti-Fragile")
	assert.Contains(t, out, "Found 2 vaults")

	views := h.Vaults(t)
	require.Len(t, views, 2)
	assert.Equal(t, []string{"Daily cash", "Buffer"}, names(views))
	assert.True(t, views[0].IsActive)
	assert.False(t, views[1].IsActive)
	assert.Equal(t, 1, views[1].SortOrder)
}

func TestListEmptyAndFiltered(t *testing.T) {
	h := NewTestHelper(t)

	out := h.MustRun(t, "list")
	assert.Contains(t, out, "No vaults found")
	assert.Contains(t, out, "vaultbook create")

	h.MustRun(t, "create", "Household", "--type", "shared", "--members", "alice,bob", "--currency", "eur")
	h.MustRun(t, "create", "Wallet")

	out = h.MustRun(t, "list", "--type", "shared", "--json")
	var views []vaultView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	assert.Equal(t, []string{"Household"}, names(views))

	out = h.MustRun(t, "list", "--search", "nothing-matches")
	assert.Contains(t, out, "No vaults found matching the filter criteria")

	out = h.MustRun(t, "list", "--sort", "name-desc", "--json")
	views = nil
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	assert.Equal(t, []string{"Wallet", "Household"}, names(views))

	_, err := h.Run(t, "list", "--sort", "sideways")
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestCreateValidation(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Wallet")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"duplicate name", []string{"create", "wallet"}, catalog.ErrDuplicateName},
		{"unknown type", []string{"create", "X", "--type", "gold"}, catalog.ErrValidation},
		{"flag of another type", []string{"create", "X", "--members", "alice"}, catalog.ErrValidation},
		{"bad amount", []string{"create", "X", "--opening-balance", "lots"}, catalog.ErrValidation},
		{"bad currency", []string{"create", "X", "--currency", "ZZZ"}, catalog.ErrValidation},
		{"empty name", []string{"create", "  "}, catalog.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Run(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, util.ExitInvalidInput, util.ExitCode(err))
		})
	}
	assert.Len(t, h.Vaults(t), 1)
}

func TestShowAndActive(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Buffer", "--type", "anti_fragile", "--buffer-target", "5000", "--currency", "EUR")

	out := h.MustRun(t, "show", "buffer")
	assert.Contains(t, out, "Anti-Fragile")
	assert.Contains(t, out, "Buffer target:")
	assert.Contains(t, out, "EUR")

	buffer := h.vaultNamed(t, "Buffer")
	out = h.MustRun(t, "active", "--copy")
	assert.Contains(t, out, "Buffer")
	copied, _ := h.Clipboard.ReadAll()
	assert.Equal(t, buffer.ID, copied)

	out = h.MustRun(t, "show", buffer.ID, "--json")
	var view vaultView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Buffer", view.Name)
	assert.True(t, view.IsActive)

	_, err := h.Run(t, "show", "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, util.ExitNotFound, util.ExitCode(err))
}

func TestActiveWithoutVaults(t *testing.T) {
	h := NewTestHelper(t)

	_, err := h.Run(t, "active")
	assert.ErrorIs(t, err, catalog.ErrNoActiveVault)
}

func TestUseCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")

	out := h.MustRun(t, "use", "beta")
	assert.Contains(t, out, "Active vault is now 'Beta'")
	assert.True(t, h.vaultNamed(t, "Beta").IsActive)

	out, err := h.RunWithInput(t, "1\n", "use")
	require.NoError(t, err)
	assert.Contains(t, out, "Select a vault:")
	assert.Contains(t, out, "Active vault is now 'Alpha'")

	_, err = h.RunWithInput(t, "7\n", "use")
	assert.ErrorIs(t, err, catalog.ErrValidation)

	h.MustRun(t, "archive", "Beta")
	_, err = h.Run(t, "use", "Beta")
	assert.ErrorIs(t, err, catalog.ErrArchivedVault)
}

func TestUpdateCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")
	h.MustRun(t, "create", "Gamma")

	h.MustRun(t, "update", "Alpha", "--name", "Anchor", "--position", "3")
	assert.Equal(t, []string{"Beta", "Gamma", "Anchor"}, names(h.Vaults(t)))

	out := h.MustRun(t, "update", "Beta", "--type", "shared", "--members", "alice,bob", "--json")
	var view vaultView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, domain.TypeShared, view.Type)

	out = h.MustRun(t, "show", "Beta")
	assert.Contains(t, out, "alice, bob")

	_, err := h.Run(t, "update", "Beta")
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = h.Run(t, "update", "Beta", "--name", "gamma")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = h.Run(t, "update", "Beta", "--opening-balance", "10")
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestArchiveAndUnarchive(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")

	out := h.MustRun(t, "archive", "Alpha")
	assert.Contains(t, out, "✓ Vault 'Alpha' archived")

	out = h.MustRun(t, "list")
	assert.NotContains(t, out, "Alpha")
	assert.True(t, h.vaultNamed(t, "Beta").IsActive, "archiving the active vault moves the selection")

	out = h.MustRun(t, "list", "--archived")
	assert.Contains(t, out, "Alpha (archived)")

	out = h.MustRun(t, "archive", "Alpha")
	assert.Contains(t, out, "already archived")

	h.MustRun(t, "unarchive", "Alpha")
	views := h.Vaults(t)
	assert.Equal(t, []string{"Beta", "Alpha"}, names(views))
	assert.False(t, views[1].IsArchived)
}

func TestDeleteCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")

	out, err := h.RunWithInput(t, "n\n", "delete", "Alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "Vault deletion cancelled")
	assert.Len(t, h.Vaults(t), 2)

	out, err = h.RunWithInput(t, "y\n", "delete", "Alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Vault 'Alpha' deleted")
	assert.Contains(t, out, "Active vault is now 'Beta'")

	out = h.MustRun(t, "delete", "Beta", "--yes")
	assert.Contains(t, out, "No active vault remains")
	assert.Empty(t, h.Vaults(t))

	entries, err := os.ReadDir(filepath.Join(h.DataDir, store.VaultsDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReorderCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")
	h.MustRun(t, "create", "Gamma")

	out := h.MustRun(t, "reorder", "Gamma", "Alpha", "Beta")
	assert.Equal(t, "1. Gamma\n2. Alpha\n3. Beta\n", out)
	assert.Equal(t, []string{"Gamma", "Alpha", "Beta"}, names(h.Vaults(t)))

	_, err := h.Run(t, "reorder", "Gamma", "Alpha")
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestTransactionLifecycle(t *testing.T) {
	h := NewTestHelper(t)

	_, err := h.Run(t, "tx", "add", "10")
	require.ErrorIs(t, err, catalog.ErrNoActiveVault)

	h.MustRun(t, "create", "Wallet", "--currency", "EUR")
	out := h.MustRun(t, "tx", "add", "12.50", "--category", "food", "--date", "2024-01-03")
	assert.Contains(t, out, "✓ Recorded")
	h.MustRun(t, "tx", "add", "--date", "2024-01-02", "--note", "coffee", "--", "-2.5")

	var txs []domain.Transaction
	out = h.MustRun(t, "tx", "list", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "coffee", txs[0].Note, "oldest first")
	assert.Equal(t, "EUR", txs[1].Currency)

	out = h.MustRun(t, "tx", "list")
	assert.Contains(t, out, "2 transactions in vault 'Wallet'")
	assert.Contains(t, out, "10.00")

	assert.Equal(t, 2, h.vaultNamed(t, "Wallet").TransactionCount)

	h.MustRun(t, "tx", "rm", txs[0].ID)
	assert.Equal(t, 1, h.vaultNamed(t, "Wallet").TransactionCount)

	_, err = h.Run(t, "tx", "rm", txs[0].ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = h.Run(t, "tx", "add", "ten")
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestExportImport(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Wallet")
	h.MustRun(t, "tx", "add", "100", "--category", "salary")
	h.MustRun(t, "tx", "add", "--", "-40")

	exportPath := filepath.Join(h.TempDir, "wallet.json")
	out := h.MustRun(t, "tx", "export", "--output", exportPath)
	assert.Contains(t, out, "Exported 2 transactions from 'Wallet'")

	info, err := os.Stat(exportPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	h.MustRun(t, "create", "Savings")
	h.MustRun(t, "use", "Savings")

	out = h.MustRun(t, "tx", "import", exportPath)
	assert.Contains(t, out, "Imported 2 transactions into 'Savings'")

	_, err = h.Run(t, "tx", "import", exportPath)
	assert.ErrorIs(t, err, catalog.ErrValidation, "ids already exist")
	assert.Equal(t, 2, h.vaultNamed(t, "Savings").TransactionCount, "failed import is all-or-nothing")

	out = h.MustRun(t, "tx", "import", exportPath, "--conflict", "skip")
	assert.Contains(t, out, "(2 skipped)")

	h.MustRun(t, "tx", "import", exportPath, "--conflict", "duplicate")
	assert.Equal(t, 4, h.vaultNamed(t, "Savings").TransactionCount)

	// a bare array is accepted as well
	arrayPath := filepath.Join(h.TempDir, "array.json")
	require.NoError(t, os.WriteFile(arrayPath, []byte(`[{"date":"2024-05-01T00:00:00Z","amount":"7"}]`), 0o600))
	h.MustRun(t, "tx", "import", arrayPath)
	assert.Equal(t, 5, h.vaultNamed(t, "Savings").TransactionCount)

	_, err = h.Run(t, "tx", "import", exportPath, "--conflict", "merge")
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestReconcileCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")

	require.NoError(t, os.Remove(filepath.Join(h.DataDir, store.CatalogFileName)))

	out, err := h.Run(t, "reconcile", "--dry-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrConsistency)
	assert.Equal(t, util.ExitIntegrityErr, util.ExitCode(err))
	assert.Contains(t, out, string(catalog.KindOrphanDataDirectory))
	assert.Contains(t, out, "would repair")

	out = h.MustRun(t, "reconcile")
	assert.Contains(t, out, "Repaired")

	out = h.MustRun(t, "reconcile")
	assert.Contains(t, out, "Catalog is consistent (2 vaults)")
	assert.Equal(t, []string{"Alpha", "Beta"}, names(h.Vaults(t)))
}

func TestDoctorCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")

	out, err := h.Run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog matches 1 vault records")
	assert.Contains(t, out, "Active vault: Alpha")

	alpha := h.vaultNamed(t, "Alpha")
	metaPath := store.Layout{Root: h.DataDir}.MetadataPath(alpha.ID)
	require.NoError(t, os.WriteFile(metaPath, []byte("{not json"), 0o600))

	out, err = h.Run(t, "doctor")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrConsistency)
	assert.Contains(t, out, string(catalog.KindUnreadableMetadata))
	assert.Contains(t, out, "Needs manual attention")
}

func TestConfigCommands(t *testing.T) {
	h := NewTestHelper(t)

	out := h.MustRun(t, "config", "path")
	assert.Equal(t, h.ConfigPath+"\n", out)

	out = h.MustRun(t, "config", "set", "default_currency", "eur")
	assert.Contains(t, out, "Configuration updated")

	out = h.MustRun(t, "config", "get", "default-currency")
	assert.Equal(t, "EUR\n", out)

	out = h.MustRun(t, "config", "get")
	assert.Contains(t, out, "default_sort: custom")
	assert.Contains(t, out, "log.level: error")

	_, err := h.Run(t, "config", "set", "output_format", "xml")
	assert.Error(t, err)
	_, err = h.Run(t, "config", "get", "nope")
	assert.Error(t, err)

	// new vaults pick up the configured currency
	h.MustRun(t, "create", "Wallet")
	out = h.MustRun(t, "show", "Wallet")
	assert.Contains(t, out, "EUR")
}

func TestJSONOutputFormatFromConfig(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "config", "set", "output_format", "json")
	h.MustRun(t, "create", "Wallet")

	out := h.MustRun(t, "active")
	var view vaultView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Wallet", view.Name)
}

func TestLockedDataDirectory(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Wallet")

	layout, err := store.NewLayout(h.DataDir)
	require.NoError(t, err)
	lock := store.NewFileLock(layout.LockPath())
	require.NoError(t, lock.Lock(time.Second))
	defer lock.Unlock()

	_, err = h.Run(t, "list")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCatalogLocked))
	assert.Equal(t, util.ExitLocked, util.ExitCode(err))
}

func TestStatusCommand(t *testing.T) {
	h := NewTestHelper(t)
	h.MustRun(t, "create", "Alpha")
	h.MustRun(t, "create", "Beta")
	h.MustRun(t, "tx", "add", "5")
	h.MustRun(t, "archive", "Beta")

	out := h.MustRun(t, "status")
	assert.Contains(t, out, "Vaults: 1 open, 1 archived")
	assert.Contains(t, out, "Active vault: Alpha")

	var info statusInfo
	require.NoError(t, json.Unmarshal([]byte(h.MustRun(t, "status", "--json")), &info))
	assert.Equal(t, h.DataDir, info.DataDir)
	assert.Equal(t, 1, info.Transactions)
	assert.NotNil(t, info.LastModified)
}
