// Package catalog keeps the index of vaults consistent with each vault's own
// metadata and data store. It orders writes so a crash between steps can be
// repaired, tracks the active vault, and reconciles divergences at startup
// and whenever a mutation fails halfway.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/btree"

	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

// DefaultLockTimeout bounds how long Open waits for another process to release the data directory
const DefaultLockTimeout = 5 * time.Second

// Stores bundles the persistence collaborators the service orchestrates
type Stores struct {
	Catalog  store.CatalogStore
	Metadata store.MetadataStore
	Data     store.DataStores
	Active   store.ActiveStore
}

// FileStores returns the file-backed stores rooted at layout
func FileStores(layout store.Layout) Stores {
	return Stores{
		Catalog:  store.NewCatalogFile(layout.CatalogPath()),
		Metadata: store.NewMetadataFiles(layout),
		Data:     store.NewBoltDataStores(layout),
		Active:   store.NewActiveFile(layout.ActivePath()),
	}
}

// Service is the single owner of the catalog. Mutations are serialized by
// one writer lock; readers see an immutable snapshot of the index.
type Service struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	index *btree.Map[string, domain.VaultIndexEntry]

	catalog  store.CatalogStore
	meta     store.MetadataStore
	data     store.DataStores
	selector *Selector

	hooks           []Hook
	log             zerolog.Logger
	now             func() time.Time
	newID           func() string
	defaultCurrency string
	lockTimeout     time.Duration
	reconcileOnOpen bool

	needsRepair atomic.Bool
	lock        *store.FileLock
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the structured logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithHook registers a lifecycle hook. Hooks run in registration order.
func WithHook(h Hook) Option {
	return func(s *Service) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides vault id generation
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithDefaultCurrency sets the currency used for default vault settings
func WithDefaultCurrency(code string) Option {
	return func(s *Service) { s.defaultCurrency = strings.ToUpper(code) }
}

// WithLockTimeout sets how long Open waits for the directory lock
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

// WithReconcileOnOpen controls whether Open runs a reconciliation pass
func WithReconcileOnOpen(enabled bool) Option {
	return func(s *Service) { s.reconcileOnOpen = enabled }
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// New builds a service over the given stores and loads the persisted state.
// A corrupted catalog is not fatal: the service starts empty and repairs
// itself before the first read.
func New(stores Stores, opts ...Option) (*Service, error) {
	s, err := buildService(stores, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// buildService configures a service without touching disk
func buildService(stores Stores, opts ...Option) (*Service, error) {
	if stores.Catalog == nil || stores.Metadata == nil || stores.Data == nil || stores.Active == nil {
		return nil, errors.New("catalog: all stores are required")
	}

	s := &Service{
		index:           btree.NewMap[string, domain.VaultIndexEntry](0),
		catalog:         stores.Catalog,
		meta:            stores.Metadata,
		data:            stores.Data,
		selector:        &Selector{store: stores.Active},
		log:             zerolog.Nop(),
		now:             time.Now,
		newID:           newID,
		defaultCurrency: "USD",
		lockTimeout:     DefaultLockTimeout,
		reconcileOnOpen: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open locks dataDir for exclusive use, loads the file-backed stores and, unless
// disabled, reconciles the catalog before returning. Nothing is read before the
// lock is held.
func Open(ctx context.Context, dataDir string, opts ...Option) (*Service, error) {
	layout, err := store.NewLayout(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	s, err := buildService(FileStores(layout), opts...)
	if err != nil {
		return nil, err
	}

	lock := store.NewFileLock(layout.LockPath())
	if err := lock.Lock(s.lockTimeout); err != nil {
		return nil, err
	}
	s.lock = lock

	if err := s.reload(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	if s.reconcileOnOpen {
		report, err := s.Reconcile(ctx, ReconcileOptions{})
		if err != nil {
			_ = lock.Unlock()
			return nil, err
		}
		if report.Changed() {
			s.log.Info().Int("divergences", len(report.Divergences)).Msg("startup reconciliation repaired catalog")
		}
		if herr := report.Err(); herr != nil {
			s.log.Warn().Err(herr).Msg("catalog has divergences that need attention")
		}
	}

	return s, nil
}

// Close releases the data directory lock
func (s *Service) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	s.lock = nil
	return err
}

// Selector returns the active vault selector
func (s *Service) Selector() *Selector {
	return s.selector
}

func (s *Service) reload() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.selector.load(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	entries, err := s.catalog.Load()
	if errors.Is(err, store.ErrCatalogCorrupted) {
		s.log.Warn().Err(err).Msg("catalog unreadable, scheduling reconciliation")
		s.needsRepair.Store(true)
		s.publish(btree.NewMap[string, domain.VaultIndexEntry](0))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	s.publish(buildIndex(entries))
	return nil
}

func buildIndex(entries []domain.VaultIndexEntry) *btree.Map[string, domain.VaultIndexEntry] {
	idx := btree.NewMap[string, domain.VaultIndexEntry](0)
	for _, e := range entries {
		e.IsActive = false
		idx.Set(e.ID, e)
	}
	return idx
}

// cloneIndex returns a private copy-on-write copy for a writer to mutate
func (s *Service) cloneIndex() *btree.Map[string, domain.VaultIndexEntry] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Copy()
}

// publish swaps in a new index for readers
func (s *Service) publish(idx *btree.Map[string, domain.VaultIndexEntry]) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
}

// snapshot returns every index entry, archived included
func (s *Service) snapshot() []domain.VaultIndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesOf(s.index)
}

func (s *Service) lookup(id string) (domain.VaultIndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Get(id)
}

func entriesOf(idx *btree.Map[string, domain.VaultIndexEntry]) []domain.VaultIndexEntry {
	out := make([]domain.VaultIndexEntry, 0, idx.Len())
	idx.Scan(func(_ string, e domain.VaultIndexEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// ordered returns the non-archived entries in display order
func ordered(idx *btree.Map[string, domain.VaultIndexEntry]) []domain.VaultIndexEntry {
	var out []domain.VaultIndexEntry
	idx.Scan(func(_ string, e domain.VaultIndexEntry) bool {
		if !e.IsArchived {
			out = append(out, e)
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// renumber rewrites sortOrder of non-archived entries to 0..n-1 keeping their
// relative order. It returns the ids whose position value changed.
func renumber(idx *btree.Map[string, domain.VaultIndexEntry]) []string {
	return assignOrder(idx, ordered(idx))
}

func assignOrder(idx *btree.Map[string, domain.VaultIndexEntry], seq []domain.VaultIndexEntry) []string {
	var changed []string
	for i, e := range seq {
		if e.SortOrder == i {
			continue
		}
		e.SortOrder = i
		idx.Set(e.ID, e)
		changed = append(changed, e.ID)
	}
	return changed
}

// nameTaken reports whether a non-archived vault other than exceptID uses name
func nameTaken(idx *btree.Map[string, domain.VaultIndexEntry], name, exceptID string) bool {
	taken := false
	idx.Scan(func(id string, e domain.VaultIndexEntry) bool {
		if id != exceptID && !e.IsArchived && strings.EqualFold(strings.TrimSpace(e.Name), name) {
			taken = true
			return false
		}
		return true
	})
	return taken
}

// ioFailure logs a persistence failure, schedules reconciliation and wraps err as ErrIO
func (s *Service) ioFailure(op, id string, err error) error {
	s.needsRepair.Store(true)
	s.log.Error().Err(err).Str("op", op).Str("vault_id", id).Msg("catalog persistence failed")
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

// ensureRepaired runs a reconciliation pass when a previous failure left the catalog divergent
func (s *Service) ensureRepaired(ctx context.Context) {
	if !s.needsRepair.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.repairLocked(ctx)
}

func (s *Service) repairLocked(ctx context.Context) {
	if !s.needsRepair.Load() {
		return
	}
	if _, err := s.reconcileLocked(ctx, ReconcileOptions{}); err != nil {
		s.log.Warn().Err(err).Msg("background reconciliation failed")
	}
}

func (s *Service) notify(fn func(Hook)) {
	for _, h := range s.hooks {
		fn(h)
	}
}

// mirrorSortOrders copies catalog positions into metadata records. The catalog is
// authoritative for ordering, so failures only leave stale mirrors behind.
func (s *Service) mirrorSortOrders(idx *btree.Map[string, domain.VaultIndexEntry], ids []string) {
	for _, id := range ids {
		e, ok := idx.Get(id)
		if !ok {
			continue
		}
		v, err := s.meta.Load(id)
		if err != nil {
			s.log.Debug().Err(err).Str("vault_id", id).Msg("skipping sort order mirror")
			continue
		}
		if v.SortOrder == e.SortOrder {
			continue
		}
		v.SortOrder = e.SortOrder
		if err := s.meta.Save(v); err != nil {
			s.log.Warn().Err(err).Str("vault_id", id).Msg("failed to mirror sort order")
		}
	}
}

// reassignActive points the selector at the lowest ordered non-archived vault, or clears it
func (s *Service) reassignActive(idx *btree.Map[string, domain.VaultIndexEntry]) error {
	next := ""
	if seq := ordered(idx); len(seq) > 0 {
		next = seq[0].ID
	}
	if err := s.selector.set(next); err != nil {
		return s.ioFailure("reassign active vault", next, err)
	}
	s.log.Debug().Str("vault_id", next).Msg("active vault reassigned")
	return nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}
