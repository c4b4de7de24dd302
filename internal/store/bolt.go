package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vaultbook/vaultbook/internal/domain"
)

// Bucket names
var (
	InfoBucket         = []byte("info")
	TransactionsBucket = []byte("transactions")
)

// ErrTransactionExists is returned when appending a transaction id twice
var ErrTransactionExists = errors.New("transaction already exists")

// BoltDataStores allocates one bbolt database per vault at vaults/<id>/data.db
type BoltDataStores struct {
	layout  Layout
	timeout time.Duration
}

var _ DataStores = (*BoltDataStores)(nil)

// NewBoltDataStores returns the data store factory of a data directory
func NewBoltDataStores(layout Layout) *BoltDataStores {
	return &BoltDataStores{layout: layout, timeout: 5 * time.Second}
}

// Create allocates an empty data store for id
func (bs *BoltDataStores) Create(id string) error {
	if err := validID(id); err != nil {
		return err
	}

	path := bs.layout.DataPath(id)
	if _, err := os.Stat(path); err == nil {
		return ErrDataStoreExists
	}

	if err := os.MkdirAll(bs.layout.VaultDir(id), dirMode); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: bs.timeout})
	if err != nil {
		return fmt.Errorf("failed to create data store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		info, err := tx.CreateBucket(InfoBucket)
		if err != nil {
			return fmt.Errorf("failed to create info bucket: %w", err)
		}
		if err := info.Put([]byte("vault_id"), []byte(id)); err != nil {
			return fmt.Errorf("failed to store vault id: %w", err)
		}
		created := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := info.Put([]byte("created_at"), created); err != nil {
			return fmt.Errorf("failed to store creation time: %w", err)
		}
		if _, err := tx.CreateBucket(TransactionsBucket); err != nil {
			return fmt.Errorf("failed to create transactions bucket: %w", err)
		}
		return nil
	})

	closeErr := db.Close()
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close data store: %w", closeErr)
	}

	return EnsureFilePermissions(path)
}

// Open opens id's data store. Callers must Close it.
func (bs *BoltDataStores) Open(id string) (VaultDataStore, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	path := bs.layout.DataPath(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrDataStoreNotFound
	}

	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: bs.timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open data store for vault %s: %w", id, err)
	}

	err = db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(InfoBucket) == nil || tx.Bucket(TransactionsBucket) == nil {
			return fmt.Errorf("data store for vault %s is missing required buckets", id)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &boltDataStore{db: db, vaultID: id}, nil
}

// Exists reports whether id has a data store on disk
func (bs *BoltDataStores) Exists(id string) bool {
	if validID(id) != nil {
		return false
	}
	_, err := os.Stat(bs.layout.DataPath(id))
	return err == nil
}

// Remove deletes id's data store. Removing an absent store is not an error.
func (bs *BoltDataStores) Remove(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(bs.layout.DataPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove data store for vault %s: %w", id, err)
	}
	if err := bs.layout.removeVaultDirIfEmpty(id); err != nil {
		return fmt.Errorf("failed to remove vault directory %s: %w", id, err)
	}
	return nil
}

// Orphans lists vault directories that hold a data store but no metadata record
func (bs *BoltDataStores) Orphans() ([]string, error) {
	dirs, err := os.ReadDir(bs.layout.VaultsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan vaults directory: %w", err)
	}

	var ids []string
	for _, d := range dirs {
		if !d.IsDir() || validID(d.Name()) != nil {
			continue
		}
		if _, err := os.Stat(bs.layout.MetadataPath(d.Name())); err == nil {
			continue
		}
		if bs.Exists(d.Name()) {
			ids = append(ids, d.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// boltDataStore is one open vault database
type boltDataStore struct {
	db      *bbolt.DB
	vaultID string
}

// ReadAll returns every transaction in key order (ids are time ordered)
func (s *boltDataStore) ReadAll() ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(TransactionsBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var t domain.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("failed to decode transaction %s: %w", string(k), err)
			}
			txs = append(txs, t)
			return nil
		})
	})
	return txs, err
}

// WriteAll replaces the full transaction set in one bbolt transaction
func (s *boltDataStore) WriteAll(txs []domain.Transaction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(TransactionsBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to clear transactions: %w", err)
		}
		bucket, err := tx.CreateBucket(TransactionsBucket)
		if err != nil {
			return fmt.Errorf("failed to recreate transactions bucket: %w", err)
		}
		for i := range txs {
			if err := putTransaction(bucket, &txs[i], true); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append stores new transactions; all or none are written
func (s *boltDataStore) Append(txs ...domain.Transaction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(TransactionsBucket)
		for i := range txs {
			if err := putTransaction(bucket, &txs[i], false); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes one transaction
func (s *boltDataStore) Delete(txID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(TransactionsBucket)
		if bucket.Get([]byte(txID)) == nil {
			return ErrTransactionNotFound
		}
		return bucket.Delete([]byte(txID))
	})
}

// Count returns the number of stored transactions
func (s *boltDataStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(TransactionsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close releases the database file
func (s *boltDataStore) Close() error {
	return s.db.Close()
}

func putTransaction(bucket *bbolt.Bucket, t *domain.Transaction, overwrite bool) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	key := []byte(t.ID)
	if !overwrite && bucket.Get(key) != nil {
		return fmt.Errorf("%w: %s", ErrTransactionExists, t.ID)
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if err := bucket.Put(key, payload); err != nil {
		return fmt.Errorf("failed to store transaction: %w", err)
	}
	return nil
}
