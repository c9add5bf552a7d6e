package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/cart"
	"storefront/domain"
	"storefront/transport"
)

type fakeOrders struct {
	mu          sync.Mutex
	createCalls int32
	urlCalls    int32

	createGate chan struct{} // if set, CreateOrder blocks until closed
	createErr  error
	urlErr     error

	order    domain.Order
	payURL   string
	gotDraft domain.OrderDraft
}

func (f *fakeOrders) CreateOrder(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	atomic.AddInt32(&f.createCalls, 1)
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	f.gotDraft = draft
	f.mu.Unlock()
	if f.createErr != nil {
		return domain.Order{}, f.createErr
	}
	order := f.order
	if order.ID == "" {
		order.ID = "ord-1"
	}
	return order, nil
}

func (f *fakeOrders) CreatePaymentURL(ctx context.Context, orderID string) (string, error) {
	atomic.AddInt32(&f.urlCalls, 1)
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return f.payURL, nil
}

func seededCart(t *testing.T) *cart.Engine {
	t.Helper()
	engine := cart.NewEngine()
	engine.AddLine(domain.ProductRef{ID: "prod-a", Name: "Alpha", UnitPrice: 100}, 2)
	return engine
}

func shipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		FullName:    "Jo Shopper",
		Phone:       "+1-555-0100",
		AddressLine: "1 Main St",
		City:        "Springfield",
		Country:     "US",
	}
}

func TestSubmit_CashOnDeliveryConfirmsAndClearsCart(t *testing.T) {
	engine := seededCart(t)
	backend := &fakeOrders{order: domain.Order{ID: "ord-1", Number: "S-1001", Status: domain.OrderStatusPending, PaymentMethod: domain.PaymentCashOnDelivery}}
	o := NewOrchestrator(engine, backend)

	if err := o.SetShipping(shipping()); err != nil {
		t.Fatalf("set shipping: %v", err)
	}
	if err := o.SelectPayment(domain.PaymentCashOnDelivery); err != nil {
		t.Fatalf("select payment: %v", err)
	}
	order, err := o.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if order.Number != "S-1001" {
		t.Fatalf("order = %+v", order)
	}
	if got := o.State(); got != StateConfirmed {
		t.Fatalf("state = %v, want Confirmed", got)
	}
	if !engine.Snapshot().IsEmpty() {
		t.Fatal("expected cart cleared after confirmed order")
	}
	if got := atomic.LoadInt32(&backend.urlCalls); got != 0 {
		t.Fatalf("cash on delivery must not request a payment URL, got %d", got)
	}
	if backend.gotDraft.IdempotencyKey == "" {
		t.Fatal("expected idempotency key on the order draft")
	}
}

func TestSubmit_GatewayRedirectsAndKeepsCart(t *testing.T) {
	engine := seededCart(t)
	backend := &fakeOrders{order: domain.Order{
		ID:            "ord-2",
		PaymentMethod: domain.PaymentGatewayA,
		RedirectURL:   "https://pay.example/ord-2",
	}}
	o := NewOrchestrator(engine, backend)

	mustReachPayment(t, o)
	if err := o.SelectPayment(domain.PaymentGatewayA); err != nil {
		t.Fatalf("select payment: %v", err)
	}
	if _, err := o.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := o.State(); got != StateRedirectingToGateway {
		t.Fatalf("state = %v, want RedirectingToGateway", got)
	}
	if got := o.RedirectURL(); got != "https://pay.example/ord-2" {
		t.Fatalf("redirect url = %q", got)
	}
	if engine.Snapshot().IsEmpty() {
		t.Fatal("cart must survive a gateway handoff")
	}
}

func TestSubmit_GatewayFallsBackToPaymentURLEndpoint(t *testing.T) {
	engine := seededCart(t)
	backend := &fakeOrders{
		order:  domain.Order{ID: "ord-3", PaymentMethod: domain.PaymentGatewayB},
		payURL: "https://pay.example/ord-3",
	}
	o := NewOrchestrator(engine, backend)

	mustReachPayment(t, o)
	if err := o.SelectPayment(domain.PaymentGatewayB); err != nil {
		t.Fatalf("select payment: %v", err)
	}
	if _, err := o.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := atomic.LoadInt32(&backend.urlCalls); got != 1 {
		t.Fatalf("expected 1 payment URL call, got %d", got)
	}
	if got := o.RedirectURL(); got != "https://pay.example/ord-3" {
		t.Fatalf("redirect url = %q", got)
	}
}

func TestSubmit_FailureReturnsToSelectingPayment(t *testing.T) {
	engine := seededCart(t)
	backend := &fakeOrders{createErr: &transport.Failure{Kind: transport.FailureServer, Status: 502, Message: "upstream down"}}
	o := NewOrchestrator(engine, backend)

	mustReachPayment(t, o)
	if err := o.SelectPayment(domain.PaymentCashOnDelivery); err != nil {
		t.Fatalf("select payment: %v", err)
	}
	_, err := o.Submit(context.Background())
	if f, ok := transport.AsFailure(err); !ok || f.Kind != transport.FailureServer {
		t.Fatalf("expected server failure surfaced, got %v", err)
	}
	if got := o.State(); got != StateSelectingPayment {
		t.Fatalf("state = %v, want SelectingPayment", got)
	}
	if engine.Snapshot().IsEmpty() {
		t.Fatal("cart must survive a failed submission")
	}

	// No automatic retry happened; the user resubmits explicitly.
	backend.createErr = nil
	backend.order = domain.Order{ID: "ord-4", PaymentMethod: domain.PaymentCashOnDelivery}
	if _, err := o.Submit(context.Background()); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got := atomic.LoadInt32(&backend.createCalls); got != 2 {
		t.Fatalf("create calls = %d, want 2", got)
	}
}

func TestSubmit_SecondSubmitWhileInFlightIsRejectedLocally(t *testing.T) {
	engine := seededCart(t)
	gate := make(chan struct{})
	backend := &fakeOrders{
		createGate: gate,
		order:      domain.Order{ID: "ord-5", PaymentMethod: domain.PaymentCashOnDelivery},
	}
	o := NewOrchestrator(engine, backend)

	mustReachPayment(t, o)
	if err := o.SelectPayment(domain.PaymentCashOnDelivery); err != nil {
		t.Fatalf("select payment: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background())
		firstDone <- err
	}()
	waitForState(t, o, StateSubmitting)

	_, err := o.Submit(context.Background())
	if f, ok := transport.AsFailure(err); !ok || f.Kind != transport.FailureConflict {
		t.Fatalf("expected local conflict rejection, got %v", err)
	}

	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := atomic.LoadInt32(&backend.createCalls); got != 1 {
		t.Fatalf("expected exactly 1 order creation, got %d", got)
	}
}

func TestSubmit_EmptyCartIsValidationFailure(t *testing.T) {
	engine := cart.NewEngine()
	o := NewOrchestrator(engine, &fakeOrders{})

	mustReachPayment(t, o)
	if err := o.SelectPayment(domain.PaymentCashOnDelivery); err != nil {
		t.Fatalf("select payment: %v", err)
	}
	_, err := o.Submit(context.Background())
	if f, ok := transport.AsFailure(err); !ok || f.Kind != transport.FailureValidation {
		t.Fatalf("expected validation failure for empty cart, got %v", err)
	}
	if got := o.State(); got != StateSelectingPayment {
		t.Fatalf("state = %v, want SelectingPayment", got)
	}
}

func TestSetShipping_ValidatesRequiredFields(t *testing.T) {
	o := NewOrchestrator(cart.NewEngine(), &fakeOrders{})
	info := shipping()
	info.Phone = "  "
	err := o.SetShipping(info)
	if f, ok := transport.AsFailure(err); !ok || f.Kind != transport.FailureValidation {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if got := o.State(); got != StateCollectingShipping {
		t.Fatalf("state = %v, want CollectingShipping", got)
	}
}

func TestSelectPayment_RequiresShippingFirst(t *testing.T) {
	o := NewOrchestrator(cart.NewEngine(), &fakeOrders{})
	err := o.SelectPayment(domain.PaymentGatewayA)
	if f, ok := transport.AsFailure(err); !ok || f.Kind != transport.FailureConflict {
		t.Fatalf("expected conflict before shipping, got %v", err)
	}
}

func TestReset_ReturnsTerminalCheckoutToStart(t *testing.T) {
	engine := seededCart(t)
	backend := &fakeOrders{order: domain.Order{ID: "ord-6", PaymentMethod: domain.PaymentCashOnDelivery}}
	o := NewOrchestrator(engine, backend)

	mustReachPayment(t, o)
	if err := o.SelectPayment(domain.PaymentCashOnDelivery); err != nil {
		t.Fatalf("select payment: %v", err)
	}
	if _, err := o.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	o.Reset()
	if got := o.State(); got != StateCollectingShipping {
		t.Fatalf("state = %v, want CollectingShipping", got)
	}
	if _, ok := o.Order(); ok {
		t.Fatal("expected order view cleared after reset")
	}
}

func mustReachPayment(t *testing.T, o *Orchestrator) {
	t.Helper()
	if err := o.SetShipping(shipping()); err != nil {
		t.Fatalf("set shipping: %v", err)
	}
}

func waitForState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if o.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, at %v", want, o.State())
}
