package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

// SortOption selects the ordering of a vault listing
type SortOption string

const (
	SortCustom       SortOption = "custom"
	SortNameAsc      SortOption = "name-asc"
	SortNameDesc     SortOption = "name-desc"
	SortCreatedAsc   SortOption = "created-asc"
	SortCreatedDesc  SortOption = "created-desc"
	SortModifiedAsc  SortOption = "modified-asc"
	SortModifiedDesc SortOption = "modified-desc"
	SortCountAsc     SortOption = "count-asc"
	SortCountDesc    SortOption = "count-desc"
)

// SortOptions lists every accepted sort option
var SortOptions = []SortOption{
	SortCustom,
	SortNameAsc, SortNameDesc,
	SortCreatedAsc, SortCreatedDesc,
	SortModifiedAsc, SortModifiedDesc,
	SortCountAsc, SortCountDesc,
}

// ParseSortOption accepts the option names plus "name" style shorthands for ascending order
func ParseSortOption(raw string) (SortOption, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	if normalized == "" {
		return SortCustom, nil
	}
	for _, opt := range SortOptions {
		if string(opt) == normalized || string(opt) == normalized+"-asc" {
			return opt, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sort option %q", ErrValidation, raw)
}

// Search keeps entries whose name or type label contains q, ignoring case.
// An empty query keeps everything.
func Search(entries []domain.VaultIndexEntry, q string) []domain.VaultIndexEntry {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]domain.VaultIndexEntry, 0, len(entries))
	for _, e := range entries {
		if q == "" ||
			strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.Type.Label()), q) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByType keeps entries of the given types. No types keeps everything.
func FilterByType(entries []domain.VaultIndexEntry, types ...domain.VaultType) []domain.VaultIndexEntry {
	out := make([]domain.VaultIndexEntry, 0, len(entries))
	for _, e := range entries {
		if len(types) == 0 || containsType(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func containsType(types []domain.VaultType, t domain.VaultType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// SortBy returns a sorted copy of entries. Every option except custom breaks
// ties by id; custom lists archived vaults last.
func SortBy(entries []domain.VaultIndexEntry, opt SortOption) []domain.VaultIndexEntry {
	out := make([]domain.VaultIndexEntry, len(entries))
	copy(out, entries)

	var less func(a, b domain.VaultIndexEntry) (bool, bool)
	switch opt {
	case SortNameAsc, SortNameDesc:
		less = func(a, b domain.VaultIndexEntry) (bool, bool) {
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if opt == SortNameDesc {
				an, bn = bn, an
			}
			return an < bn, an == bn
		}
	case SortCreatedAsc, SortCreatedDesc:
		less = func(a, b domain.VaultIndexEntry) (bool, bool) {
			if opt == SortCreatedDesc {
				a, b = b, a
			}
			return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
	case SortModifiedAsc, SortModifiedDesc:
		less = func(a, b domain.VaultIndexEntry) (bool, bool) {
			if opt == SortModifiedDesc {
				a, b = b, a
			}
			return a.LastModified.Before(b.LastModified), a.LastModified.Equal(b.LastModified)
		}
	case SortCountAsc, SortCountDesc:
		less = func(a, b domain.VaultIndexEntry) (bool, bool) {
			if opt == SortCountDesc {
				a, b = b, a
			}
			return a.TransactionCount < b.TransactionCount, a.TransactionCount == b.TransactionCount
		}
	default:
		less = func(a, b domain.VaultIndexEntry) (bool, bool) {
			if a.IsArchived != b.IsArchived {
				return !a.IsArchived, false
			}
			return a.SortOrder < b.SortOrder, a.SortOrder == b.SortOrder
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		lt, eq := less(out[i], out[j])
		if eq {
			return out[i].ID < out[j].ID
		}
		return lt
	})
	return out
}

// Query composes the projections: filters first, then sort
type Query struct {
	Search          string
	Types           []domain.VaultType
	Sort            SortOption
	IncludeArchived bool
}

// Apply runs q over entries and returns a fresh slice
func (q Query) Apply(entries []domain.VaultIndexEntry) []domain.VaultIndexEntry {
	out := entries
	if !q.IncludeArchived {
		out = make([]domain.VaultIndexEntry, 0, len(entries))
		for _, e := range entries {
			if !e.IsArchived {
				out = append(out, e)
			}
		}
	}
	out = FilterByType(out, q.Types...)
	out = Search(out, q.Search)
	return SortBy(out, q.Sort)
}

// Vaults returns the catalog filtered and sorted by q, with IsActive populated.
// Listings never fail: a catalog left divergent by an earlier failure is
// reconciled first.
func (s *Service) Vaults(ctx context.Context, q Query) []domain.VaultIndexEntry {
	s.ensureRepaired(ctx)

	entries := q.Apply(s.snapshot())
	activeID, _ := s.selector.ActiveID()
	for i := range entries {
		entries[i].IsActive = entries[i].ID == activeID
	}
	return entries
}

// GetAllVaults returns the non-archived vaults in custom order
func (s *Service) GetAllVaults(ctx context.Context) []domain.VaultIndexEntry {
	return s.Vaults(ctx, Query{Sort: SortCustom})
}

// GetVault returns the full record of id
func (s *Service) GetVault(ctx context.Context, id string) (*domain.VaultEntity, error) {
	s.ensureRepaired(ctx)

	e, ok := s.lookup(id)
	if !ok {
		return nil, notFound(id)
	}
	v, err := s.meta.Load(id)
	if errors.Is(err, store.ErrMetadataNotFound) {
		// the entry is an orphan; repair and report the vault as gone
		s.needsRepair.Store(true)
		s.ensureRepaired(ctx)
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %w", ErrIO, err)
	}

	// the catalog owns position and the freshest counter
	v.SortOrder = e.SortOrder
	v.TransactionCount = e.TransactionCount
	activeID, _ := s.selector.ActiveID()
	v.IsActive = v.ID == activeID
	return v, nil
}

// GetActiveVault returns the active vault or ErrNoActiveVault
func (s *Service) GetActiveVault(ctx context.Context) (*domain.VaultEntity, error) {
	s.ensureRepaired(ctx)

	id, ok := s.selector.ActiveID()
	if !ok {
		return nil, ErrNoActiveVault
	}
	return s.GetVault(ctx, id)
}

// ResolveVault finds a vault by exact id, then by case-insensitive name among
// non-archived vaults, then among archived ones
func (s *Service) ResolveVault(ctx context.Context, ref string) (domain.VaultIndexEntry, error) {
	s.ensureRepaired(ctx)

	ref = strings.TrimSpace(ref)
	if e, ok := s.lookup(ref); ok {
		return e, nil
	}
	entries := SortBy(s.snapshot(), SortCustom)
	for _, e := range entries {
		if strings.EqualFold(e.Name, ref) {
			return e, nil
		}
	}
	return domain.VaultIndexEntry{}, notFound(ref)
}
