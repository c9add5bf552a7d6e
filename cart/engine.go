package cart

import (
	"sync"

	"github.com/google/uuid"

	"storefront/domain"
)

// Engine is the canonical in-memory cart. Local mutations apply
// optimistically and synchronously; totals are recomputed wholesale
// after every mutation so derived values can never drift. The engine
// never rolls an optimistic edit back: sync failures leave the cart
// dirty and a later reconcile settles it.
type Engine struct {
	mu       sync.Mutex
	cart     domain.Cart
	onChange func(domain.Cart)
}

func NewEngine() *Engine {
	return &Engine{}
}

// OnChange registers a listener observing every committed cart
// transition. The listener receives a deep snapshot and has no
// influence on control flow.
func (e *Engine) OnChange(fn func(domain.Cart)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

func (e *Engine) Snapshot() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

// AddLine adds qty of the product, merging into an existing line for
// the same product. The unit price is captured from the ref at add
// time and never silently re-read.
func (e *Engine) AddLine(product domain.ProductRef, qty int) domain.Cart {
	if qty < 1 {
		qty = 1
	}
	e.mu.Lock()
	if i := e.indexOfLocked(product.ID); i >= 0 {
		e.cart.Lines[i].Quantity += qty
		e.cart.Lines[i].Dirty = true
	} else {
		e.cart.Lines = append(e.cart.Lines, domain.CartLine{
			ID:       uuid.NewString(),
			Product:  product,
			Quantity: qty,
			Dirty:    true,
		})
	}
	e.cart.Dirty = true
	return e.commitLocked()
}

// SetQuantity replaces the line's quantity. A quantity below one is
// equivalent to RemoveLine.
func (e *Engine) SetQuantity(productID string, qty int) domain.Cart {
	if qty < 1 {
		return e.RemoveLine(productID)
	}
	e.mu.Lock()
	if i := e.indexOfLocked(productID); i >= 0 {
		e.cart.Lines[i].Quantity = qty
		e.cart.Lines[i].Dirty = true
		e.cart.Dirty = true
	}
	return e.commitLocked()
}

// RemoveLine drops the line. Removing the last line yields an empty
// but valid cart.
func (e *Engine) RemoveLine(productID string) domain.Cart {
	e.mu.Lock()
	if i := e.indexOfLocked(productID); i >= 0 {
		e.cart.Lines = append(e.cart.Lines[:i], e.cart.Lines[i+1:]...)
		e.cart.Dirty = true
	}
	return e.commitLocked()
}

func (e *Engine) Clear() domain.Cart {
	e.mu.Lock()
	e.cart = domain.Cart{}
	return e.commitLocked()
}

// SetAdjustments records the server-quoted discount and shipping
// estimate. Negative values are clamped to zero.
func (e *Engine) SetAdjustments(discount, shippingEstimate domain.Money) domain.Cart {
	if discount < 0 {
		discount = 0
	}
	if shippingEstimate < 0 {
		shippingEstimate = 0
	}
	e.mu.Lock()
	e.cart.Discount = discount
	e.cart.ShippingEstimate = shippingEstimate
	return e.commitLocked()
}

// ReconcileWithServer replaces the line list with the server's
// authoritative version while preserving local intent: a dirty line
// for a product the server also returned keeps the local quantity and
// stays dirty; a dirty line the server lacks is re-appended. Clean
// local lines absent from the server view are dropped. A reconcile
// arriving after later local mutations therefore never clobbers them.
func (e *Engine) ReconcileWithServer(server domain.Cart) domain.Cart {
	e.mu.Lock()
	var dirty []domain.CartLine
	for _, line := range e.cart.Lines {
		if line.Dirty {
			dirty = append(dirty, line)
		}
	}

	merged := make([]domain.CartLine, len(server.Lines))
	copy(merged, server.Lines)
	for i := range merged {
		merged[i].Dirty = false
	}
	for _, local := range dirty {
		found := false
		for i := range merged {
			if merged[i].Product.ID == local.Product.ID {
				merged[i].Quantity = local.Quantity
				merged[i].Dirty = true
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, local)
		}
	}

	e.cart.Lines = merged
	e.cart.Discount = server.Discount
	e.cart.ShippingEstimate = server.ShippingEstimate
	e.cart.Dirty = anyDirty(merged)
	return e.commitLocked()
}

// Restore rehydrates the cart from a persisted snapshot. Restored
// lines are marked dirty so the first reconcile after login cannot
// drop them.
func (e *Engine) Restore(cart domain.Cart) domain.Cart {
	e.mu.Lock()
	e.cart = cart.Clone()
	for i := range e.cart.Lines {
		e.cart.Lines[i].Dirty = true
	}
	e.cart.Dirty = len(e.cart.Lines) > 0
	return e.commitLocked()
}

// MarkLineSynced clears the dirty flag once the server acknowledged
// the line's current state.
func (e *Engine) MarkLineSynced(productID string) {
	e.mu.Lock()
	if i := e.indexOfLocked(productID); i >= 0 {
		e.cart.Lines[i].Dirty = false
	}
	e.cart.Dirty = anyDirty(e.cart.Lines)
	e.commitLocked()
}

// DetachFromServer drops the cart's server-linked state after a
// session teardown: lines survive as local-only (dirty) intent,
// server-quoted adjustments are discarded.
func (e *Engine) DetachFromServer() domain.Cart {
	e.mu.Lock()
	for i := range e.cart.Lines {
		e.cart.Lines[i].Dirty = true
	}
	e.cart.Discount = 0
	e.cart.ShippingEstimate = 0
	e.cart.Dirty = len(e.cart.Lines) > 0
	return e.commitLocked()
}

// MarkDirty flags the whole cart as out of sync with the server,
// without touching any line.
func (e *Engine) MarkDirty() {
	e.mu.Lock()
	e.cart.Dirty = true
	e.commitLocked()
}

// commitLocked recomputes derived totals, releases the lock, and
// notifies the listener with a snapshot. Callers must hold e.mu.
func (e *Engine) commitLocked() domain.Cart {
	var subtotal domain.Money
	for i := range e.cart.Lines {
		line := &e.cart.Lines[i]
		line.LineTotal = line.Product.UnitPrice * domain.Money(line.Quantity)
		subtotal += line.LineTotal
	}
	e.cart.Subtotal = subtotal
	total := subtotal - e.cart.Discount + e.cart.ShippingEstimate
	if total < 0 {
		total = 0
	}
	e.cart.Total = total

	snapshot := e.cart.Clone()
	listener := e.onChange
	e.mu.Unlock()
	if listener != nil {
		listener(snapshot)
	}
	return snapshot
}

func (e *Engine) indexOfLocked(productID string) int {
	for i := range e.cart.Lines {
		if e.cart.Lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func anyDirty(lines []domain.CartLine) bool {
	for _, l := range lines {
		if l.Dirty {
			return true
		}
	}
	return false
}
