package persist

import (
	"log"
	"sync"
	"time"

	"storefront/domain"
	"storefront/metrics"
)

// Synchronizer is a pure side-effect listener: it serializes the
// whitelisted state subset after every committed cart or session
// transition and rehydrates it at startup. Persistence is a
// best-effort cache, never a source of truth: a storage failure is
// logged and swallowed, and a missing or corrupt snapshot restores as
// empty rather than failing startup.
type Synchronizer struct {
	mu    sync.Mutex
	store Store
	cart  domain.Cart
	flags domain.SessionFlags
}

func NewSynchronizer(store Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// ObserveCart is wired to the cart engine's change hook.
func (s *Synchronizer) ObserveCart(cart domain.Cart) {
	s.mu.Lock()
	s.cart = cart
	s.writeLocked()
	s.mu.Unlock()
}

// ObserveSession is wired to the session manager's change hook. It
// only ever receives derived flags, never the credential.
func (s *Synchronizer) ObserveSession(flags domain.SessionFlags) {
	s.mu.Lock()
	s.flags = flags
	s.writeLocked()
	s.mu.Unlock()
}

// Restore reads the snapshot written by a previous run. Any failure
// yields the empty baseline.
func (s *Synchronizer) Restore() domain.PersistedSnapshot {
	snapshot, ok, err := s.store.Read()
	if err != nil {
		log.Printf("persist: restore failed, starting empty: %v", err)
		metrics.RecordPersistenceFailure("read")
		return domain.PersistedSnapshot{}
	}
	if !ok {
		return domain.PersistedSnapshot{}
	}
	s.mu.Lock()
	s.cart = snapshot.Cart
	s.flags = snapshot.Session
	s.mu.Unlock()
	return snapshot
}

func (s *Synchronizer) writeLocked() {
	snapshot := domain.PersistedSnapshot{
		Cart:    s.cart,
		Session: s.flags,
		SavedAt: time.Now().UTC(),
	}
	if err := s.store.Write(snapshot); err != nil {
		log.Printf("persist: snapshot write failed: %v", err)
		metrics.RecordPersistenceFailure("write")
	}
}
