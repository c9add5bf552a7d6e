package persist_test

import (
	"testing"

	"storefront/domain"
	"storefront/persist"
	"storefront/persist/memory"
)

func TestObserveCart_WritesSnapshot(t *testing.T) {
	store := memory.NewStore()
	sync := persist.NewSynchronizer(store)

	sync.ObserveSession(domain.SessionFlags{Authenticated: true, UserID: "user-1"})
	sync.ObserveCart(domain.Cart{
		Lines:    []domain.CartLine{{ID: "l1", Product: domain.ProductRef{ID: "prod-a", UnitPrice: 100}, Quantity: 2, LineTotal: 200}},
		Subtotal: 200,
		Total:    200,
	})

	snapshot, ok, err := store.Read()
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if len(snapshot.Cart.Lines) != 1 || snapshot.Cart.Total != 200 {
		t.Fatalf("cart = %+v", snapshot.Cart)
	}
	if !snapshot.Session.Authenticated || snapshot.Session.UserID != "user-1" {
		t.Fatalf("session = %+v", snapshot.Session)
	}
	if snapshot.SavedAt.IsZero() {
		t.Fatal("expected save timestamp")
	}
}

func TestObserveCart_SwallowsWriteFailures(t *testing.T) {
	store := memory.NewStore()
	store.FailWrites = true
	sync := persist.NewSynchronizer(store)

	// Must not panic or surface the error to the caller.
	sync.ObserveCart(domain.Cart{Subtotal: 100, Total: 100})
	sync.ObserveSession(domain.SessionFlags{Authenticated: true})

	store.FailWrites = false
	sync.ObserveCart(domain.Cart{Subtotal: 300, Total: 300})

	snapshot, ok, err := store.Read()
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if snapshot.Cart.Total != 300 {
		t.Fatalf("expected latest state once storage recovered, got %+v", snapshot.Cart)
	}
	if !snapshot.Session.Authenticated {
		t.Fatal("expected session flags retained across failed writes")
	}
}

func TestRestore_ReadFailureYieldsEmptyBaseline(t *testing.T) {
	store := memory.NewStore()
	store.FailReads = true
	sync := persist.NewSynchronizer(store)

	snapshot := sync.Restore()
	if len(snapshot.Cart.Lines) != 0 || snapshot.Session.Authenticated {
		t.Fatalf("expected empty baseline, got %+v", snapshot)
	}
}

func TestRestore_MissingSnapshotYieldsEmptyBaseline(t *testing.T) {
	sync := persist.NewSynchronizer(memory.NewStore())
	snapshot := sync.Restore()
	if len(snapshot.Cart.Lines) != 0 || !snapshot.SavedAt.IsZero() {
		t.Fatalf("expected empty baseline, got %+v", snapshot)
	}
}

func TestRestore_RoundTripsObservedState(t *testing.T) {
	store := memory.NewStore()
	first := persist.NewSynchronizer(store)
	first.ObserveCart(domain.Cart{
		Lines: []domain.CartLine{{ID: "l1", Product: domain.ProductRef{ID: "prod-a", UnitPrice: 100}, Quantity: 1, LineTotal: 100}},
	})

	second := persist.NewSynchronizer(store)
	snapshot := second.Restore()
	if len(snapshot.Cart.Lines) != 1 || snapshot.Cart.Lines[0].Product.ID != "prod-a" {
		t.Fatalf("restored cart = %+v", snapshot.Cart)
	}
}
