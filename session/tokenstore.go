package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"storefront/domain"
	"storefront/internal/secretbox"
)

// TokenStore is the narrow storage entry holding the raw token pair.
// It is owned solely by the session manager; the snapshot written by
// the persistence synchronizer never contains credentials.
type TokenStore interface {
	Save(cred domain.Credential) error
	Load() (domain.Credential, bool, error)
	Clear() error
}

// FileTokenStore seals the credential pair with AES-GCM before it
// touches disk.
type FileTokenStore struct {
	path string
	box  *secretbox.Box
}

func NewFileTokenStore(path, base64Key string) (*FileTokenStore, error) {
	box, err := secretbox.New(base64Key)
	if err != nil {
		return nil, fmt.Errorf("token store: %w", err)
	}
	return &FileTokenStore{path: path, box: box}, nil
}

func (s *FileTokenStore) Save(cred domain.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	sealed, err := s.box.Seal(raw)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileTokenStore) Load() (domain.Credential, bool, error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Credential{}, false, nil
		}
		return domain.Credential{}, false, err
	}
	raw, err := s.box.Open(sealed)
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("unseal credential: %w", err)
	}
	var cred domain.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return domain.Credential{}, false, fmt.Errorf("decode credential: %w", err)
	}
	return cred, true, nil
}

func (s *FileTokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenStore keeps the pair in memory. Used when no encryption
// key is configured, and by tests.
type MemoryTokenStore struct {
	cred domain.Credential
	set  bool
}

func (s *MemoryTokenStore) Save(cred domain.Credential) error {
	s.cred = cred
	s.set = true
	return nil
}

func (s *MemoryTokenStore) Load() (domain.Credential, bool, error) {
	return s.cred, s.set, nil
}

func (s *MemoryTokenStore) Clear() error {
	s.cred = domain.Credential{}
	s.set = false
	return nil
}
