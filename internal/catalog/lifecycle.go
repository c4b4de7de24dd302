package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/btree"

	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

// MaxNameLength bounds vault names in runes
const MaxNameLength = 64

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("vault name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", validationf("vault name exceeds %d characters", MaxNameLength)
	}
	return name, nil
}

func (s *Service) resolveSettings(t domain.VaultType, settings domain.Settings, currency string) (domain.Settings, error) {
	if !t.Valid() {
		return nil, validationf("unknown vault type %q", t)
	}
	if settings == nil {
		if currency == "" {
			currency = s.defaultCurrency
		}
		settings = domain.DefaultSettings(t, currency)
	}
	if settings.Kind() != t {
		return nil, validationf("%s settings do not match vault type %s", settings.Kind(), t)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return settings, nil
}

// CreateVault registers a new vault. The data store and metadata are made
// durable before the catalog entry, so a crash in between leaves an orphan
// that reconciliation registers rather than an entry pointing at nothing.
func (s *Service) CreateVault(ctx context.Context, name string, t domain.VaultType, settings domain.Settings) (*domain.VaultEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	settings, err = s.resolveSettings(t, settings, "")
	if err != nil {
		return nil, err
	}

	v, err := s.createLocked(ctx, name, t, settings)
	if err != nil {
		return nil, err
	}

	s.notify(func(h Hook) { h.OnVaultCreated(*v.Clone()) })
	return v, nil
}

func (s *Service) createLocked(ctx context.Context, name string, t domain.VaultType, settings domain.Settings) (*domain.VaultEntity, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)

	idx := s.cloneIndex()
	if nameTaken(idx, name, "") {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	now := s.timestamp()
	v := &domain.VaultEntity{
		ID:           s.newID(),
		Name:         name,
		Type:         t,
		Settings:     settings,
		CreatedAt:    now,
		LastModified: now,
		SortOrder:    len(ordered(idx)),
	}

	if err := s.data.Create(v.ID); err != nil {
		return nil, s.ioFailure("create data store", v.ID, err)
	}
	if err := s.meta.Save(v); err != nil {
		return nil, s.ioFailure("write metadata", v.ID, err)
	}

	idx.Set(v.ID, v.IndexEntry())
	if err := s.catalog.Save(entriesOf(idx)); err != nil {
		return nil, s.ioFailure("write catalog", v.ID, err)
	}
	s.publish(idx)

	if _, ok := s.selector.ActiveID(); !ok {
		if err := s.selector.set(v.ID); err != nil {
			// the vault is committed; reconciliation assigns the pointer
			s.needsRepair.Store(true)
			s.log.Warn().Err(err).Str("vault_id", v.ID).Msg("failed to activate first vault")
		}
	}
	activeID, _ := s.selector.ActiveID()
	v.IsActive = activeID == v.ID

	s.log.Info().Str("vault_id", v.ID).Str("name", v.Name).Str("type", string(v.Type)).Msg("vault created")
	return v, nil
}

// DeleteVault removes a vault. The catalog entry goes first; data and metadata
// follow, so an interrupted delete leaves a record reconciliation re-registers.
func (s *Service) DeleteVault(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.deleteLocked(ctx, id); err != nil {
		return err
	}
	s.notify(func(h Hook) { h.OnVaultDeleted(id) })
	return nil
}

func (s *Service) deleteLocked(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)

	idx := s.cloneIndex()
	if _, ok := idx.Get(id); !ok {
		return notFound(id)
	}

	idx.Delete(id)
	moved := renumber(idx)
	if err := s.catalog.Save(entriesOf(idx)); err != nil {
		return s.ioFailure("write catalog", id, err)
	}
	s.publish(idx)

	if err := s.data.Remove(id); err != nil {
		return s.ioFailure("remove data store", id, err)
	}
	if err := s.meta.Remove(id); err != nil {
		return s.ioFailure("remove metadata", id, err)
	}
	s.mirrorSortOrders(idx, moved)

	if activeID, _ := s.selector.ActiveID(); activeID == id {
		if err := s.reassignActive(idx); err != nil {
			return err
		}
	}

	s.log.Info().Str("vault_id", id).Msg("vault deleted")
	return nil
}

// ArchiveVault hides a vault from default listings and the active set while
// keeping its data. Archiving an archived vault is a no-op.
func (s *Service) ArchiveVault(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := s.setArchivedLocked(ctx, id, true)
	if err != nil || v == nil {
		return err
	}
	s.notify(func(h Hook) { h.OnVaultUpdated(*v) })
	return nil
}

// UnarchiveVault restores an archived vault to the end of the custom order
func (s *Service) UnarchiveVault(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := s.setArchivedLocked(ctx, id, false)
	if err != nil || v == nil {
		return err
	}
	s.notify(func(h Hook) { h.OnVaultUpdated(*v) })
	return nil
}

// setArchivedLocked returns nil, nil when the vault is already in the requested state
func (s *Service) setArchivedLocked(ctx context.Context, id string, archived bool) (*domain.VaultEntity, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)

	idx := s.cloneIndex()
	e, ok := idx.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	if e.IsArchived == archived {
		return nil, nil
	}
	if !archived && nameTaken(idx, e.Name, id) {
		return nil, fmt.Errorf("%w: %q is used by another vault", ErrDuplicateName, e.Name)
	}

	v, err := s.loadMetadata(id)
	if err != nil {
		return nil, err
	}
	v.IsArchived = archived
	v.LastModified = s.timestamp()
	if !archived {
		v.SortOrder = len(ordered(idx))
	}
	v.TransactionCount = e.TransactionCount

	if err := s.meta.Save(v); err != nil {
		return nil, s.ioFailure("write metadata", id, err)
	}

	idx.Set(id, v.IndexEntry())
	moved := renumber(idx)
	if err := s.catalog.Save(entriesOf(idx)); err != nil {
		return nil, s.ioFailure("write catalog", id, err)
	}
	s.publish(idx)
	s.mirrorSortOrders(idx, moved)

	activeID, hasActive := s.selector.ActiveID()
	switch {
	case archived && activeID == id:
		if err := s.reassignActive(idx); err != nil {
			return nil, err
		}
	case !archived && !hasActive:
		if err := s.selector.set(id); err != nil {
			return nil, s.ioFailure("activate vault", id, err)
		}
	}

	s.log.Info().Str("vault_id", id).Bool("archived", archived).Msg("vault archive state changed")
	return v.Clone(), nil
}

// UpdateVault applies name, type, settings and position changes. Counters,
// timestamps and the archived flag are owned by the service and ignored.
func (s *Service) UpdateVault(ctx context.Context, update *domain.VaultEntity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if update == nil || update.ID == "" {
		return validationf("vault id is required")
	}
	name, err := normalizeName(update.Name)
	if err != nil {
		return err
	}

	v, err := s.updateLocked(ctx, update, name)
	if err != nil {
		return err
	}
	s.notify(func(h Hook) { h.OnVaultUpdated(*v) })
	return nil
}

func (s *Service) updateLocked(ctx context.Context, update *domain.VaultEntity, name string) (*domain.VaultEntity, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)

	id := update.ID
	idx := s.cloneIndex()
	e, ok := idx.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	cur, err := s.loadMetadata(id)
	if err != nil {
		return nil, err
	}

	settings := update.Settings
	if settings == nil && update.Type == cur.Type {
		settings = cur.Settings
	}
	settings, err = s.resolveSettings(update.Type, settings, domain.CurrencyOf(cur.Settings))
	if err != nil {
		return nil, err
	}
	if !e.IsArchived && nameTaken(idx, name, id) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	next := cur.Clone()
	next.Name = name
	next.Type = update.Type
	next.Settings = settings
	next.LastModified = s.timestamp()
	next.TransactionCount = e.TransactionCount
	next.SortOrder = e.SortOrder

	var moved []string
	if !e.IsArchived && update.SortOrder != e.SortOrder {
		moved = moveTo(idx, id, update.SortOrder)
		moved = removeID(moved, id)
		pos, _ := idx.Get(id)
		next.SortOrder = pos.SortOrder
	}

	if err := s.meta.Save(next); err != nil {
		return nil, s.ioFailure("write metadata", id, err)
	}
	idx.Set(id, next.IndexEntry())
	if err := s.catalog.Save(entriesOf(idx)); err != nil {
		return nil, s.ioFailure("write catalog", id, err)
	}
	s.publish(idx)
	s.mirrorSortOrders(idx, moved)

	s.log.Info().Str("vault_id", id).Str("name", next.Name).Msg("vault updated")
	return next.Clone(), nil
}

// moveTo places id at position pos (clamped) within the non-archived order
func moveTo(idx *btree.Map[string, domain.VaultIndexEntry], id string, pos int) []string {
	seq := ordered(idx)
	var target domain.VaultIndexEntry
	rest := seq[:0:0]
	for _, e := range seq {
		if e.ID == id {
			target = e
			continue
		}
		rest = append(rest, e)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(rest) {
		pos = len(rest)
	}

	out := make([]domain.VaultIndexEntry, 0, len(seq))
	out = append(out, rest[:pos]...)
	out = append(out, target)
	out = append(out, rest[pos:]...)
	return assignOrder(idx, out)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SetActiveVault routes subsequent transaction operations to id
func (s *Service) SetActiveVault(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)

	e, ok := s.lookup(id)
	if !ok {
		return notFound(id)
	}
	if e.IsArchived {
		return fmt.Errorf("%w: %s", ErrArchivedVault, e.Name)
	}
	if err := s.selector.set(id); err != nil {
		return s.ioFailure("write active pointer", id, err)
	}
	s.log.Info().Str("vault_id", id).Str("name", e.Name).Msg("active vault changed")
	return nil
}

// UpdateTransactionCount refreshes the cached counter on metadata and catalog.
// It is a cache update: failures are logged and never returned.
func (s *Service) UpdateTransactionCount(ctx context.Context, id string, count int) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.updateCountLocked(id, count)
}

func (s *Service) updateCountLocked(id string, count int) {
	if count < 0 {
		s.log.Warn().Str("vault_id", id).Int("count", count).Msg("ignoring negative transaction count")
		return
	}
	e, ok := s.lookup(id)
	if !ok {
		s.log.Debug().Str("vault_id", id).Msg("transaction count for unknown vault")
		return
	}

	v, err := s.meta.Load(id)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("vault_id", id).Msg("failed to load metadata for counter update")
	case v.TransactionCount != count:
		v.TransactionCount = count
		if err := s.meta.Save(v); err != nil {
			s.log.Warn().Err(err).Str("vault_id", id).Msg("failed to update metadata counter")
		}
	}

	if e.TransactionCount == count {
		return
	}
	idx := s.cloneIndex()
	e.TransactionCount = count
	idx.Set(id, e)
	if err := s.catalog.Save(entriesOf(idx)); err != nil {
		s.log.Warn().Err(err).Str("vault_id", id).Msg("failed to update catalog counter")
		return
	}
	s.publish(idx)
}

// ReorderVaults assigns contiguous positions following orderedIDs, which must be
// a permutation of every non-archived vault id. The new order is visible at once;
// if persisting it fails the last durable catalog is reloaded.
func (s *Service) ReorderVaults(ctx context.Context, orderedIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)

	prev := s.cloneIndex()
	idx := s.cloneIndex()

	current := ordered(idx)
	if len(orderedIDs) != len(current) {
		return validationf("reorder needs %d vault ids, got %d", len(current), len(orderedIDs))
	}
	known := make(map[string]domain.VaultIndexEntry, len(current))
	for _, e := range current {
		known[e.ID] = e
	}
	seen := make(map[string]bool, len(orderedIDs))
	seq := make([]domain.VaultIndexEntry, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		e, ok := known[id]
		if !ok {
			return validationf("%s is not a non-archived vault", id)
		}
		if seen[id] {
			return validationf("%s appears more than once", id)
		}
		seen[id] = true
		seq = append(seq, e)
	}

	moved := assignOrder(idx, seq)
	if len(moved) == 0 {
		return nil
	}
	s.publish(idx)

	if err := s.catalog.Save(entriesOf(idx)); err != nil {
		s.log.Error().Err(err).Msg("failed to persist vault order, reloading catalog")
		if entries, lerr := s.catalog.Load(); lerr == nil {
			s.publish(buildIndex(entries))
		} else {
			s.publish(prev)
			s.needsRepair.Store(true)
		}
		return fmt.Errorf("%w: write catalog: %w", ErrIO, err)
	}
	s.mirrorSortOrders(idx, moved)

	s.log.Info().Int("vaults", len(seq)).Msg("vaults reordered")
	return nil
}

// loadMetadata reads a vault record that the catalog claims exists. A missing
// or unreadable record is a divergence and schedules reconciliation.
func (s *Service) loadMetadata(id string) (*domain.VaultEntity, error) {
	v, err := s.meta.Load(id)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, store.ErrMetadataNotFound):
		s.needsRepair.Store(true)
		return nil, &ConsistencyError{Divergences: []Divergence{{Kind: KindOrphanIndexEntry, VaultID: id, Detail: err.Error()}}}
	case errors.Is(err, store.ErrMetadataCorrupted):
		return nil, &ConsistencyError{Divergences: []Divergence{{Kind: KindUnreadableMetadata, VaultID: id, Detail: err.Error()}}}
	default:
		return nil, fmt.Errorf("%w: read metadata: %w", ErrIO, err)
	}
}
