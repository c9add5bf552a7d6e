package memory

import (
	"errors"
	"sync"

	"storefront/domain"
)

// Store keeps the snapshot in memory. Tests use the failure toggles to
// exercise the best-effort persistence rules.
type Store struct {
	mu       sync.Mutex
	snapshot domain.PersistedSnapshot
	set      bool

	FailWrites bool
	FailReads  bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Write(snapshot domain.PersistedSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errors.New("storage quota exceeded")
	}
	s.snapshot = snapshot
	s.set = true
	return nil
}

func (s *Store) Read() (domain.PersistedSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return domain.PersistedSnapshot{}, false, errors.New("snapshot corrupt")
	}
	if !s.set {
		return domain.PersistedSnapshot{}, false, nil
	}
	return s.snapshot, true, nil
}
