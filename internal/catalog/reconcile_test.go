package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

func addRawTransactions(t *testing.T, layout store.Layout, vaultID string, n int) {
	t.Helper()
	ds, err := store.NewBoltDataStores(layout).Open(vaultID)
	require.NoError(t, err)
	defer ds.Close()

	for i := 0; i < n; i++ {
		require.NoError(t, ds.Append(domain.Transaction{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Date:      time.Date(2024, 2, i+1, 0, 0, 0, 0, time.UTC),
			Amount:    decimal.NewFromInt(int64(10 * (i + 1))),
			Currency:  "EUR",
			CreatedAt: time.Now().UTC(),
		}))
	}
}

// divergentDataDir builds a data directory with one of each repairable defect:
// a vault missing from the catalog (c), an entry whose metadata is gone (b,
// which is also the active vault) and a drifted counter (a).
func divergentDataDir(t *testing.T) (store.Layout, *domain.VaultEntity, *domain.VaultEntity, *domain.VaultEntity) {
	t.Helper()
	svc, layout := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A")
	b := mustCreate(t, svc, "B")
	c := mustCreate(t, svc, "C")
	require.NoError(t, svc.SetActiveVault(ctx, b.ID))

	addRawTransactions(t, layout, a.ID, 2)

	cf := store.NewCatalogFile(layout.CatalogPath())
	entries, err := cf.Load()
	require.NoError(t, err)
	var kept []domain.VaultIndexEntry
	for _, e := range entries {
		if e.ID != c.ID {
			kept = append(kept, e)
		}
	}
	require.NoError(t, cf.Save(kept))
	require.NoError(t, os.Remove(layout.MetadataPath(b.ID)))

	return layout, a, b, c
}

func TestReconcile_RepairsDivergentCatalog(t *testing.T) {
	layout, a, b, c := divergentDataDir(t)
	ctx := context.Background()

	svc := newService(t, FileStores(layout))
	report, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(KindOrphanIndexEntry))
	assert.Equal(t, 1, report.Count(KindOrphanDataDirectory))
	assert.Equal(t, 1, report.Count(KindCounterDrift))
	assert.Equal(t, 1, report.Count(KindActivePointer))
	assert.Equal(t, 1, report.Count(KindUnexplainedData))
	assert.True(t, report.Changed())

	var cerr *ConsistencyError
	require.ErrorAs(t, report.Err(), &cerr)
	for _, d := range cerr.Divergences {
		assert.NotEqual(t, KindCounterDrift, d.Kind, "counter drift is soft")
	}

	all := svc.GetAllVaults(ctx)
	assert.Equal(t, []string{a.ID, c.ID}, ids(all))
	assert.Equal(t, 2, all[0].TransactionCount)
	assertInvariants(t, svc)

	// the unexplained data store is reported, never deleted
	_, err = os.Stat(layout.DataPath(b.ID))
	assert.NoError(t, err)

	got, err := svc.GetVault(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TransactionCount)
}

func TestReconcile_Idempotent(t *testing.T) {
	layout, _, _, _ := divergentDataDir(t)
	ctx := context.Background()

	svc := newService(t, FileStores(layout))
	first, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	require.True(t, first.Changed())

	before, err := os.ReadFile(layout.CatalogPath())
	require.NoError(t, err)

	second, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, second.Changed(), "second pass must not repair anything: %v", second.Divergences)
	assert.Equal(t, 1, second.Count(KindUnexplainedData), "unrepairable findings are still reported")

	after, err := os.ReadFile(layout.CatalogPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconcile_CleanCatalog(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, "A")
	mustCreate(t, svc, "B")

	report, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.NoError(t, report.Err())
	assert.Equal(t, 2, report.Vaults)
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	layout, _, _, _ := divergentDataDir(t)
	ctx := context.Background()

	before, err := os.ReadFile(layout.CatalogPath())
	require.NoError(t, err)

	svc := newService(t, FileStores(layout))
	report, err := svc.Reconcile(ctx, ReconcileOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.True(t, report.Changed())
	for _, d := range report.Divergences {
		assert.False(t, d.Repaired, "%s", d)
	}

	after, err := os.ReadFile(layout.CatalogPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// the live run still finds everything
	report, err = svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(KindOrphanDataDirectory))
}

func TestReconcile_OnlyCounterDriftIsSoft(t *testing.T) {
	svc, layout := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A")
	addRawTransactions(t, layout, a.ID, 3)

	report, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(KindCounterDrift))
	assert.NoError(t, report.Err())
	assert.Equal(t, 3, svc.GetAllVaults(ctx)[0].TransactionCount)
}

func TestReconcile_RebuildsCorruptCatalog(t *testing.T) {
	svc, layout := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A")
	b := mustCreate(t, svc, "B")
	require.NoError(t, svc.ReorderVaults(ctx, []string{b.ID, a.ID}))

	require.NoError(t, os.WriteFile(layout.CatalogPath(), []byte("{\"version\":1,\"entries\":[{"), 0o600))

	restarted := newService(t, FileStores(layout))
	// listing never fails on corruption: it reconciles first
	all := restarted.GetAllVaults(ctx)
	assert.Equal(t, []string{b.ID, a.ID}, ids(all))
	assertInvariants(t, restarted)

	report, err := restarted.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestReconcile_RecreatesMissingDataStore(t *testing.T) {
	svc, layout := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A")
	addRawTransactions(t, layout, a.ID, 1)
	svc.UpdateTransactionCount(ctx, a.ID, 1)
	require.NoError(t, os.Remove(layout.DataPath(a.ID)))

	report, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(KindMissingDataStore))
	assert.Equal(t, 1, report.Count(KindCounterDrift))
	assert.True(t, store.NewBoltDataStores(layout).Exists(a.ID))
	assert.Zero(t, svc.GetAllVaults(ctx)[0].TransactionCount)
}

func TestReconcile_RefreshesStaleEntries(t *testing.T) {
	svc, layout := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A")

	meta := store.NewMetadataFiles(layout)
	v, err := meta.Load(a.ID)
	require.NoError(t, err)
	v.Name = "Renamed elsewhere"
	require.NoError(t, meta.Save(v))

	report, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(KindStaleIndexEntry))
	assert.Equal(t, "Renamed elsewhere", svc.GetAllVaults(ctx)[0].Name)
}

func TestReconcile_ReportsUnreadableMetadata(t *testing.T) {
	svc, layout := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "A")
	require.NoError(t, os.WriteFile(layout.MetadataPath(a.ID), []byte("not json"), 0o600))

	report, err := svc.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(KindUnreadableMetadata))
	assert.False(t, report.Changed())

	// the entry is kept so the vault is not lost, but operations report the divergence
	assert.Len(t, svc.GetAllVaults(ctx), 1)
	assert.ErrorIs(t, svc.ArchiveVault(ctx, a.ID), ErrConsistency)
}
