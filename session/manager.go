package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"storefront/domain"
	"storefront/metrics"
	"storefront/transport"
)

// RenewFunc exchanges a refresh token for a new credential pair. The
// facade wires this to the token endpoint client; it never goes
// through the authenticated pipeline.
type RenewFunc func(ctx context.Context, refreshToken string) (domain.Credential, error)

// Manager exclusively owns the credential pair. Renewal is
// single-flight: concurrent callers await the one outstanding flight
// and share its outcome, so a rotate-on-use backend never sees two
// competing refresh attempts. One failed flight is terminal for the
// session: the manager clears all credential state, fires the teardown
// hook exactly once, and reports transport.ErrRenewalFailed.
type Manager struct {
	mu      sync.Mutex
	cred    domain.Credential
	pending *renewFlight

	renewFn    RenewFunc
	store      TokenStore
	onTeardown func()
	onChange   func(domain.SessionFlags)
}

type renewFlight struct {
	done chan struct{}
	cred domain.Credential
	err  error
}

func NewManager(renewFn RenewFunc, store TokenStore) *Manager {
	m := &Manager{renewFn: renewFn, store: store}
	if store != nil {
		cred, ok, err := store.Load()
		if err != nil {
			log.Printf("session: restore token entry failed: %v", err)
			metrics.RecordPersistenceFailure("token_load")
		} else if ok {
			m.cred = cred
		}
	}
	return m
}

// OnTeardown registers the hook invoked when a renewal failure forces
// the session down. The presentation layer navigates to its
// authentication entry point from here.
func (m *Manager) OnTeardown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTeardown = fn
}

// OnChange registers a listener observing committed session
// transitions. It receives the derived flags, never the credential.
func (m *Manager) OnChange(fn func(domain.SessionFlags)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) Credential() domain.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

func (m *Manager) SetCredential(cred domain.Credential) {
	m.mu.Lock()
	m.cred = cred
	m.persistLocked()
	listener, flags := m.onChange, m.flagsLocked()
	m.mu.Unlock()
	if listener != nil {
		listener(flags)
	}
}

func (m *Manager) Clear() {
	m.mu.Lock()
	m.cred = domain.Credential{}
	m.clearStoreLocked()
	listener, flags := m.onChange, m.flagsLocked()
	m.mu.Unlock()
	if listener != nil {
		listener(flags)
	}
}

// Renew performs the single-flight credential renewal.
func (m *Manager) Renew(ctx context.Context) (domain.Credential, error) {
	m.mu.Lock()
	if m.pending != nil {
		flight := m.pending
		m.mu.Unlock()
		select {
		case <-flight.done:
			return flight.cred, flight.err
		case <-ctx.Done():
			return domain.Credential{}, ctx.Err()
		}
	}
	flight := &renewFlight{done: make(chan struct{})}
	m.pending = flight
	refreshToken := m.cred.RefreshToken
	m.mu.Unlock()

	var (
		cred domain.Credential
		err  error
	)
	if refreshToken == "" {
		err = fmt.Errorf("%w: no refresh token", transport.ErrRenewalFailed)
	} else {
		cred, err = m.renewFn(ctx, refreshToken)
		if err != nil {
			err = fmt.Errorf("%w: %v", transport.ErrRenewalFailed, err)
		}
	}

	m.mu.Lock()
	m.pending = nil
	var teardown func()
	var listener func(domain.SessionFlags)
	var flags domain.SessionFlags
	if err != nil {
		m.cred = domain.Credential{}
		m.clearStoreLocked()
		teardown = m.onTeardown
		listener, flags = m.onChange, m.flagsLocked()
		metrics.RecordRenewal(false)
	} else {
		m.cred = cred
		m.persistLocked()
		listener, flags = m.onChange, m.flagsLocked()
		metrics.RecordRenewal(true)
	}
	m.mu.Unlock()

	flight.cred = cred
	flight.err = err
	close(flight.done)

	// One teardown per failed flight, no matter how many requests
	// were waiting on it.
	if teardown != nil {
		metrics.RecordTeardown()
		teardown()
	}
	if listener != nil {
		listener(flags)
	}
	return cred, err
}

// Flags derives the minimal persisted identity from the current
// credential. Claims are read unverified: the client never validates
// expiry locally, it relies on server-reported auth failure.
func (m *Manager) Flags() domain.SessionFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flagsLocked()
}

func (m *Manager) flagsLocked() domain.SessionFlags {
	if m.cred.IsZero() {
		return domain.SessionFlags{}
	}
	flags := domain.SessionFlags{Authenticated: true}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(m.cred.AccessToken, claims); err == nil {
		if sub, ok := claims["sub"].(string); ok {
			flags.UserID = sub
		}
		if email, ok := claims["email"].(string); ok {
			flags.Email = email
		}
	}
	return flags
}

func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	if m.cred.IsZero() {
		m.clearStoreLocked()
		return
	}
	if err := m.store.Save(m.cred); err != nil {
		log.Printf("session: persist token entry failed: %v", err)
		metrics.RecordPersistenceFailure("token_save")
	}
}

func (m *Manager) clearStoreLocked() {
	if m.store == nil {
		return
	}
	if err := m.store.Clear(); err != nil {
		log.Printf("session: clear token entry failed: %v", err)
		metrics.RecordPersistenceFailure("token_clear")
	}
}
