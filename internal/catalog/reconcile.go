package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/btree"

	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

// ReconcileOptions controls a reconciliation pass
type ReconcileOptions struct {
	// DryRun computes the report without writing anything
	DryRun bool
}

// Reconcile brings the catalog back in line with the metadata records and data
// stores on disk. It registers unindexed vaults, drops entries without metadata,
// refreshes drifted fields and counters, renumbers the custom order and repairs
// the active pointer. Running it twice in a row changes nothing the second time.
//
// A data store it cannot explain is reported, never deleted.
func (s *Service) Reconcile(ctx context.Context, opts ReconcileOptions) (*RepairReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.reconcileLocked(ctx, opts)
}

func (s *Service) reconcileLocked(_ context.Context, opts ReconcileOptions) (*RepairReport, error) {
	report := &RepairReport{StartedAt: s.timestamp(), DryRun: opts.DryRun}

	metas, failures, err := s.meta.Scan()
	if err != nil {
		return nil, fmt.Errorf("%w: scan metadata: %w", ErrIO, err)
	}
	unreadable := make(map[string]bool, len(failures))
	for _, f := range failures {
		unreadable[f.ID] = true
		report.add(Divergence{Kind: KindUnreadableMetadata, VaultID: f.ID, Detail: f.Err.Error()})
	}

	orphans, err := s.data.Orphans()
	if err != nil {
		return nil, fmt.Errorf("%w: scan data stores: %w", ErrIO, err)
	}
	for _, id := range orphans {
		if !unreadable[id] {
			report.add(Divergence{Kind: KindUnexplainedData, VaultID: id, Detail: "data store has no metadata record"})
		}
	}

	catalogDirty := false
	persisted, err := s.catalog.Load()
	switch {
	case errors.Is(err, store.ErrCatalogCorrupted):
		report.add(Divergence{Kind: KindCorruptCatalog, Detail: err.Error()})
		persisted = nil
		catalogDirty = true
	case err != nil:
		return nil, fmt.Errorf("%w: read catalog: %w", ErrIO, err)
	}

	byID := make(map[string]*domain.VaultEntity, len(metas))
	for _, m := range metas {
		byID[m.ID] = m
	}

	idx := btree.NewMap[string, domain.VaultIndexEntry](0)
	for _, e := range persisted {
		e.IsActive = false
		if _, ok := byID[e.ID]; ok || unreadable[e.ID] {
			idx.Set(e.ID, e)
			continue
		}
		report.add(Divergence{Kind: KindOrphanIndexEntry, VaultID: e.ID, Name: e.Name, Detail: "metadata record missing"})
		catalogDirty = true
	}

	metaDirty := make(map[string]*domain.VaultEntity)
	if s.registerOrphans(idx, metas, metaDirty, report) {
		catalogDirty = true
	}

	missingData := make(map[string]bool)
	for _, m := range metas {
		if !s.data.Exists(m.ID) {
			missingData[m.ID] = true
			report.add(Divergence{Kind: KindMissingDataStore, VaultID: m.ID, Name: m.Name, Detail: "recreating empty data store"})
		}

		e, _ := idx.Get(m.ID)
		if drift := staleFields(e, m); len(drift) > 0 {
			e.Name = m.Name
			e.Type = m.Type
			e.IsArchived = m.IsArchived
			e.CreatedAt = m.CreatedAt
			e.LastModified = m.LastModified
			idx.Set(m.ID, e)
			catalogDirty = true
			report.add(Divergence{Kind: KindStaleIndexEntry, VaultID: m.ID, Name: m.Name, Detail: strings.Join(drift, ", ")})
		}
	}

	for _, m := range metas {
		count := 0
		if !missingData[m.ID] {
			n, err := s.countTransactions(m.ID)
			if err != nil {
				report.add(Divergence{Kind: KindUnreadableDataStore, VaultID: m.ID, Name: m.Name, Detail: err.Error()})
				continue
			}
			count = n
		}

		e, _ := idx.Get(m.ID)
		if e.TransactionCount == count && m.TransactionCount == count {
			continue
		}
		report.add(Divergence{
			Kind:    KindCounterDrift,
			VaultID: m.ID,
			Name:    m.Name,
			Detail:  fmt.Sprintf("catalog %d, metadata %d, stored %d", e.TransactionCount, m.TransactionCount, count),
		})
		if e.TransactionCount != count {
			e.TransactionCount = count
			idx.Set(m.ID, e)
			catalogDirty = true
		}
		if m.TransactionCount != count {
			m.TransactionCount = count
			metaDirty[m.ID] = m
		}
	}

	if moved := renumber(idx); len(moved) > 0 {
		catalogDirty = true
		report.add(Divergence{Kind: KindOrderGap, Detail: fmt.Sprintf("%d vault(s) renumbered", len(moved))})
	}

	// sort order mirrors follow the catalog silently
	for _, m := range metas {
		e, _ := idx.Get(m.ID)
		if !e.IsArchived && m.SortOrder != e.SortOrder {
			m.SortOrder = e.SortOrder
			metaDirty[m.ID] = m
		}
	}

	activeID, _ := s.selector.ActiveID()
	wantActive := activeID
	seq := ordered(idx)
	first := ""
	if len(seq) > 0 {
		first = seq[0].ID
	}
	if activeID != "" {
		if e, ok := idx.Get(activeID); !ok || e.IsArchived {
			wantActive = first
			reason := "active vault no longer exists"
			if ok {
				reason = "active vault is archived"
			}
			report.add(Divergence{Kind: KindActivePointer, VaultID: activeID, Detail: reason})
		}
	} else if first != "" {
		wantActive = first
		report.add(Divergence{Kind: KindActivePointer, VaultID: first, Detail: "no active vault set"})
	}

	report.Vaults = idx.Len()
	if opts.DryRun {
		return s.finishReport(report), nil
	}

	for id := range missingData {
		if err := s.data.Create(id); err != nil && !errors.Is(err, store.ErrDataStoreExists) {
			return nil, fmt.Errorf("%w: recreate data store %s: %w", ErrIO, id, err)
		}
	}
	for id, m := range metaDirty {
		if err := s.meta.Save(m); err != nil {
			s.log.Warn().Err(err).Str("vault_id", id).Msg("failed to refresh metadata during reconciliation")
		}
	}
	if catalogDirty {
		if err := s.catalog.Save(entriesOf(idx)); err != nil {
			return nil, fmt.Errorf("%w: write catalog: %w", ErrIO, err)
		}
	}
	s.publish(idx)

	if wantActive != activeID {
		if err := s.selector.set(wantActive); err != nil {
			return nil, fmt.Errorf("%w: write active pointer: %w", ErrIO, err)
		}
	}

	s.needsRepair.Store(false)
	return s.finishReport(report), nil
}

// registerOrphans adds index entries for metadata records the catalog does not
// know, appending non-archived ones after the existing order. An orphan whose
// name is already used by a registered vault comes back archived.
func (s *Service) registerOrphans(idx *btree.Map[string, domain.VaultIndexEntry], metas []*domain.VaultEntity, metaDirty map[string]*domain.VaultEntity, report *RepairReport) bool {
	var unregistered []*domain.VaultEntity
	for _, m := range metas {
		if _, ok := idx.Get(m.ID); !ok {
			unregistered = append(unregistered, m)
		}
	}
	if len(unregistered) == 0 {
		return false
	}
	sort.SliceStable(unregistered, func(i, j int) bool {
		a, b := unregistered[i], unregistered[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	next := 0
	for _, e := range ordered(idx) {
		if e.SortOrder >= next {
			next = e.SortOrder + 1
		}
	}
	for _, m := range unregistered {
		if !m.IsArchived && nameTaken(idx, strings.TrimSpace(m.Name), m.ID) {
			m.IsArchived = true
			m.LastModified = s.timestamp()
			metaDirty[m.ID] = m
			report.add(Divergence{Kind: KindNameConflict, VaultID: m.ID, Name: m.Name, Detail: "name already in use, registering as archived"})
		}
		e := m.IndexEntry()
		e.IsActive = false
		if !m.IsArchived {
			e.SortOrder = next
			next++
		}
		idx.Set(m.ID, e)
		report.add(Divergence{Kind: KindOrphanDataDirectory, VaultID: m.ID, Name: m.Name, Detail: "registering vault missing from catalog"})
	}
	return true
}

func staleFields(e domain.VaultIndexEntry, m *domain.VaultEntity) []string {
	var drift []string
	if e.Name != m.Name {
		drift = append(drift, "name")
	}
	if e.Type != m.Type {
		drift = append(drift, "type")
	}
	if e.IsArchived != m.IsArchived {
		drift = append(drift, "archived")
	}
	if !e.CreatedAt.Equal(m.CreatedAt) {
		drift = append(drift, "created_at")
	}
	if !e.LastModified.Equal(m.LastModified) {
		drift = append(drift, "last_modified")
	}
	return drift
}

func (s *Service) countTransactions(id string) (int, error) {
	ds, err := s.data.Open(id)
	if err != nil {
		return 0, err
	}
	defer ds.Close()
	return ds.Count()
}

func (s *Service) finishReport(r *RepairReport) *RepairReport {
	r.FinishedAt = s.timestamp()
	ev := s.log.Debug()
	if !r.Clean() {
		ev = s.log.Info()
	}
	ev.Int("divergences", len(r.Divergences)).
		Int("vaults", r.Vaults).
		Bool("dry_run", r.DryRun).
		Dur("took", r.FinishedAt.Sub(r.StartedAt)).
		Msg("reconciliation finished")
	return r
}
