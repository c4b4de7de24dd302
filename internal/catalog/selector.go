package catalog

import (
	"sync"

	"github.com/vaultbook/vaultbook/internal/store"
)

// Selector tracks the active vault id. The pointer is persisted on its own so
// switching vaults never rewrites the catalog.
type Selector struct {
	mu    sync.RWMutex
	store store.ActiveStore
	id    string
}

func (s *Selector) load() error {
	id, err := s.store.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return nil
}

// ActiveID returns the active vault id and whether one is set
func (s *Selector) ActiveID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// set persists id before making it visible
func (s *Selector) set(id string) error {
	if err := s.store.Save(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return nil
}
