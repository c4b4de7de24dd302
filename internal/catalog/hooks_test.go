package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbook/vaultbook/internal/domain"
)

type recordingHook struct {
	NopHook
	mu      sync.Mutex
	created []string
	deleted []string
}

func (h *recordingHook) OnVaultCreated(v domain.VaultEntity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, v.Name)
}

func (h *recordingHook) OnVaultDeleted(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, id)
}

func TestHooks_FireOnlyAfterCommit(t *testing.T) {
	layout := newLayout(t)
	stores := FileStores(layout)
	flaky := &flakyCatalog{CatalogStore: stores.Catalog}
	stores.Catalog = flaky
	hook := &recordingHook{}
	svc := newService(t, stores, WithHook(hook))
	ctx := context.Background()

	a := mustCreate(t, svc, "A")

	flaky.setFail(true)
	_, err := svc.CreateVault(ctx, "B", domain.TypeCash, nil)
	require.Error(t, err)
	flaky.setFail(false)

	_, err = svc.CreateVault(ctx, "a", domain.TypeCash, nil)
	require.ErrorIs(t, err, ErrDuplicateName)

	require.NoError(t, svc.DeleteVault(ctx, a.ID))
	assert.ErrorIs(t, svc.DeleteVault(ctx, a.ID), ErrNotFound)

	assert.Equal(t, []string{"A"}, hook.created)
	assert.Equal(t, []string{a.ID}, hook.deleted)
}

func TestHooks_MayCallBackIntoService(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var seen int
	reentrant := &callbackHook{fn: func(v domain.VaultEntity) {
		// hooks run outside the writer lock
		seen = len(svc.GetAllVaults(ctx))
	}}
	svc.hooks = append(svc.hooks, reentrant)

	mustCreate(t, svc, "A")
	assert.Equal(t, 1, seen)
}

type callbackHook struct {
	NopHook
	fn func(domain.VaultEntity)
}

func (h *callbackHook) OnVaultCreated(v domain.VaultEntity) { h.fn(v) }

func TestChannelHook(t *testing.T) {
	ch := make(chan Event, 1)
	svc, _ := newTestService(t, WithHook(NewChannelHook(ch, zerolog.Nop())))
	ctx := context.Background()

	a := mustCreate(t, svc, "A")
	ev := <-ch
	assert.Equal(t, EventCreated, ev.Kind)
	assert.Equal(t, a.ID, ev.VaultID)
	require.NotNil(t, ev.Vault)
	assert.Equal(t, "A", ev.Vault.Name)

	require.NoError(t, svc.ArchiveVault(ctx, a.ID))
	// the buffer is full, so the next event is dropped instead of blocking
	require.NoError(t, svc.UnarchiveVault(ctx, a.ID))

	ev = <-ch
	assert.Equal(t, EventUpdated, ev.Kind)
	assert.True(t, ev.Vault.IsArchived)

	require.NoError(t, svc.DeleteVault(ctx, a.ID))
	ev = <-ch
	assert.Equal(t, EventDeleted, ev.Kind)
	assert.Nil(t, ev.Vault)
}
