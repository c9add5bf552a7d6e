package cart

import (
	"context"
	"log"
	"time"

	"storefront/domain"
	"storefront/metrics"
	"storefront/transport"
)

// Backend is the slice of the api client the syncer needs.
type Backend interface {
	FetchCart(ctx context.Context) (domain.Cart, error)
	AddCartLine(ctx context.Context, line domain.CartLine) error
	UpdateCartLine(ctx context.Context, line domain.CartLine) error
	DeleteCartLine(ctx context.Context, productID string) error
}

// RetryPolicy is owned by the syncer's caller, not buried inside a
// connection: max attempts and backoff schedule are explicit so
// lifecycle and cancellation stay testable.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the delay before the given retry (attempt starts at
// zero), doubling from BaseDelay and capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Syncer pushes optimistic cart mutations to the backend. A failed
// push never rolls the local edit back; it leaves the line dirty for a
// later reconcile or retry to settle.
type Syncer struct {
	engine  *Engine
	backend Backend
	policy  RetryPolicy
}

func NewSyncer(engine *Engine, backend Backend, policy RetryPolicy) *Syncer {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Syncer{engine: engine, backend: backend, policy: policy}
}

// PushAdd syncs a freshly added line.
func (s *Syncer) PushAdd(ctx context.Context, line domain.CartLine) error {
	return s.push(ctx, line.Product.ID, func(ctx context.Context) error {
		return s.backend.AddCartLine(ctx, line)
	})
}

// PushUpdate syncs a quantity change.
func (s *Syncer) PushUpdate(ctx context.Context, line domain.CartLine) error {
	return s.push(ctx, line.Product.ID, func(ctx context.Context) error {
		return s.backend.UpdateCartLine(ctx, line)
	})
}

// PushRemove syncs a removal. There is no line left to mark clean; a
// failure just leaves the cart dirty.
func (s *Syncer) PushRemove(ctx context.Context, productID string) error {
	err := s.attempt(ctx, func(ctx context.Context) error {
		return s.backend.DeleteCartLine(ctx, productID)
	})
	if err != nil {
		s.engine.MarkDirty()
		return err
	}
	return nil
}

// PushDirty replays every unacknowledged line to the server. Used
// after login to settle a guest cart that was merged by reconcile.
func (s *Syncer) PushDirty(ctx context.Context) error {
	var firstErr error
	for _, line := range s.engine.Snapshot().Lines {
		if !line.Dirty {
			continue
		}
		if err := s.PushAdd(ctx, line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Refresh pulls the server's authoritative cart and reconciles it into
// the engine.
func (s *Syncer) Refresh(ctx context.Context) (domain.Cart, error) {
	server, err := s.backend.FetchCart(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.engine.ReconcileWithServer(server), nil
}

func (s *Syncer) push(ctx context.Context, productID string, op func(context.Context) error) error {
	err := s.attempt(ctx, op)
	if err != nil {
		s.engine.MarkDirty()
		return err
	}
	s.engine.MarkLineSynced(productID)
	return nil
}

func (s *Syncer) attempt(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.policy.Backoff(attempt - 1)):
			case <-ctx.Done():
				metrics.RecordCartSync(false)
				return ctx.Err()
			}
		}
		err = op(ctx)
		if err == nil {
			metrics.RecordCartSync(true)
			return nil
		}
		if !retryable(err) {
			break
		}
		log.Printf("cart: sync attempt %d failed, will retry: %v", attempt+1, err)
	}
	metrics.RecordCartSync(false)
	return err
}

// Only transient failures are worth another attempt; validation,
// auth, and renewal outcomes will not change on a resend.
func retryable(err error) bool {
	switch transport.KindOf(err) {
	case transport.FailureNetwork, transport.FailureServer:
		return true
	default:
		return false
	}
}
