package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

// ActiveResolver answers which vault transaction operations target
type ActiveResolver interface {
	ActiveID() (string, bool)
}

// Ledger performs transaction operations against whichever vault the resolver
// reports as active at call time
type Ledger struct {
	svc    *Service
	active ActiveResolver
}

// Ledger returns a ledger routed through the service's own selector
func (s *Service) Ledger() *Ledger {
	return NewLedger(s, s.selector)
}

// NewLedger returns a ledger routed through active
func NewLedger(svc *Service, active ActiveResolver) *Ledger {
	return &Ledger{svc: svc, active: active}
}

// target resolves the active vault and checks it is usable
func (l *Ledger) target() (domain.VaultIndexEntry, error) {
	id, ok := l.active.ActiveID()
	if !ok {
		return domain.VaultIndexEntry{}, ErrNoActiveVault
	}
	e, found := l.svc.lookup(id)
	if !found || e.IsArchived {
		l.svc.needsRepair.Store(true)
		return domain.VaultIndexEntry{}, fmt.Errorf("%w: active vault %s is not available", ErrNoActiveVault, id)
	}
	return e, nil
}

// withStore runs fn against the active vault's data store under the writer lock
// and refreshes the cached counter afterwards when refresh is set
func (l *Ledger) withStore(ctx context.Context, refresh bool, fn func(e domain.VaultIndexEntry, ds store.VaultDataStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.svc.ensureRepaired(ctx)

	l.svc.writeMu.Lock()
	defer l.svc.writeMu.Unlock()

	e, err := l.target()
	if err != nil {
		return err
	}
	ds, err := l.svc.data.Open(e.ID)
	if errors.Is(err, store.ErrDataStoreNotFound) {
		l.svc.needsRepair.Store(true)
		return &ConsistencyError{Divergences: []Divergence{{Kind: KindMissingDataStore, VaultID: e.ID, Name: e.Name}}}
	}
	if err != nil {
		return fmt.Errorf("%w: open data store: %w", ErrIO, err)
	}
	defer ds.Close()

	if err := fn(e, ds); err != nil {
		return err
	}
	if refresh {
		n, err := ds.Count()
		if err != nil {
			l.svc.log.Warn().Err(err).Str("vault_id", e.ID).Msg("failed to count transactions")
			return nil
		}
		l.svc.updateCountLocked(e.ID, n)
	}
	return nil
}

// prepare fills defaults for a new transaction and validates it
func (l *Ledger) prepare(e domain.VaultIndexEntry, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	if t.Currency == "" {
		t.Currency = l.vaultCurrency(e.ID)
	}
	t.Currency = strings.ToUpper(t.Currency)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = l.svc.timestamp()
	}
	if t.Date.IsZero() {
		t.Date = t.CreatedAt
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (l *Ledger) vaultCurrency(id string) string {
	v, err := l.svc.meta.Load(id)
	if err != nil {
		return l.svc.defaultCurrency
	}
	if c := domain.CurrencyOf(v.Settings); c != "" {
		return c
	}
	return l.svc.defaultCurrency
}

// AddTransaction stores t in the active vault and returns it with defaults filled in
func (l *Ledger) AddTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	err := l.withStore(ctx, true, func(e domain.VaultIndexEntry, ds store.VaultDataStore) error {
		if err := l.prepare(e, &t); err != nil {
			return err
		}
		return appendTransactions(ds, t)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// ImportTransactions stores a batch atomically. The counter is refreshed once after the batch.
func (l *Ledger) ImportTransactions(ctx context.Context, txs []domain.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	batch := make([]domain.Transaction, len(txs))
	copy(batch, txs)

	err := l.withStore(ctx, true, func(e domain.VaultIndexEntry, ds store.VaultDataStore) error {
		for i := range batch {
			if err := l.prepare(e, &batch[i]); err != nil {
				return fmt.Errorf("transaction %d: %w", i+1, err)
			}
		}
		return appendTransactions(ds, batch...)
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

func appendTransactions(ds store.VaultDataStore, txs ...domain.Transaction) error {
	err := ds.Append(txs...)
	if errors.Is(err, store.ErrTransactionExists) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err != nil {
		return fmt.Errorf("%w: append transactions: %w", ErrIO, err)
	}
	return nil
}

// ListTransactions returns the active vault's transactions ordered by date, then id
func (l *Ledger) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := l.withStore(ctx, false, func(_ domain.VaultIndexEntry, ds store.VaultDataStore) error {
		txs, err := ds.ReadAll()
		if err != nil {
			return fmt.Errorf("%w: read transactions: %w", ErrIO, err)
		}
		out = txs
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ExportTransactions returns the full transaction set of the active vault with its id
func (l *Ledger) ExportTransactions(ctx context.Context) (string, []domain.Transaction, error) {
	id, _ := l.active.ActiveID()
	txs, err := l.ListTransactions(ctx)
	if err != nil {
		return "", nil, err
	}
	return id, txs, nil
}

// DeleteTransaction removes one transaction from the active vault
func (l *Ledger) DeleteTransaction(ctx context.Context, txID string) error {
	return l.withStore(ctx, true, func(_ domain.VaultIndexEntry, ds store.VaultDataStore) error {
		err := ds.Delete(txID)
		if errors.Is(err, store.ErrTransactionNotFound) {
			return fmt.Errorf("%w: transaction %s", ErrNotFound, txID)
		}
		if err != nil {
			return fmt.Errorf("%w: delete transaction: %w", ErrIO, err)
		}
		return nil
	})
}
