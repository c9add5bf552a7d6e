package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"storefront/domain"
)

// Store persists the snapshot as one JSON document, written atomically
// via a temp file rename.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Write(snapshot domain.PersistedSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Read() (domain.PersistedSnapshot, bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.PersistedSnapshot{}, false, nil
		}
		return domain.PersistedSnapshot{}, false, err
	}
	var snapshot domain.PersistedSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.PersistedSnapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, true, nil
}
