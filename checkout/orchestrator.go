package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/domain"
	"storefront/metrics"
	"storefront/transport"
)

type State string

const (
	StateCollectingShipping   State = "COLLECTING_SHIPPING"
	StateSelectingPayment     State = "SELECTING_PAYMENT"
	StateSubmitting           State = "SUBMITTING"
	StateRedirectingToGateway State = "REDIRECTING_TO_GATEWAY"
	StateConfirmed            State = "CONFIRMED"
)

// IsTerminal reports whether the checkout has handed off: either to
// local confirmation or to the external payment provider.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateRedirectingToGateway
}

func (s State) String() string { return string(s) }

// OrderBackend is the slice of the api client the orchestrator needs.
type OrderBackend interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (domain.Order, error)
	CreatePaymentURL(ctx context.Context, orderID string) (string, error)
}

// CartSource is the slice of the cart engine the orchestrator needs.
type CartSource interface {
	Snapshot() domain.Cart
	Clear() domain.Cart
}

// Orchestrator drives the checkout sequence
// CollectingShipping → SelectingPayment → Submitting →
// {RedirectingToGateway | Confirmed}. Submission hands off exactly
// once: a second Submit while one is in flight is rejected locally,
// and a failed submission returns to SelectingPayment, never further
// back and never with an automatic retry.
type Orchestrator struct {
	mu          sync.Mutex
	state       State
	shipping    domain.ShippingInfo
	method      domain.PaymentMethod
	draft       *domain.OrderDraft
	order       *domain.Order
	redirectURL string

	cart    CartSource
	backend OrderBackend
}

func NewOrchestrator(cart CartSource, backend OrderBackend) *Orchestrator {
	return &Orchestrator{
		state:   StateCollectingShipping,
		cart:    cart,
		backend: backend,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Order returns the created order's read view once the checkout
// reached a terminal state.
func (o *Orchestrator) Order() (domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.order == nil {
		return domain.Order{}, false
	}
	return *o.order, true
}

// RedirectURL returns the gateway handoff target after
// RedirectingToGateway was reached.
func (o *Orchestrator) RedirectURL() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.redirectURL
}

// SetShipping captures validated shipping info and advances to
// payment selection. Editing shipping is allowed until a submission
// is in flight.
func (o *Orchestrator) SetShipping(info domain.ShippingInfo) error {
	if err := validateShipping(info); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting || o.state.IsTerminal() {
		return &transport.Failure{Kind: transport.FailureConflict, Message: "checkout already " + strings.ToLower(string(o.state))}
	}
	o.shipping = info
	o.state = StateSelectingPayment
	return nil
}

func (o *Orchestrator) SelectPayment(method domain.PaymentMethod) error {
	switch method {
	case domain.PaymentCashOnDelivery, domain.PaymentGatewayA, domain.PaymentGatewayB:
	default:
		return &transport.Failure{Kind: transport.FailureValidation, Message: "unknown payment method"}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateSelectingPayment {
		return &transport.Failure{Kind: transport.FailureConflict, Message: "shipping info required before payment selection"}
	}
	o.method = method
	return nil
}

// Submit builds an immutable draft from the current cart snapshot and
// performs the one order-creation call.
func (o *Orchestrator) Submit(ctx context.Context) (domain.Order, error) {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		metrics.RecordSubmission("conflict")
		return domain.Order{}, &transport.Failure{Kind: transport.FailureConflict, Message: "a submission is already in flight"}
	}
	if o.state != StateSelectingPayment || o.method == "" {
		o.mu.Unlock()
		metrics.RecordSubmission("conflict")
		return domain.Order{}, &transport.Failure{Kind: transport.FailureConflict, Message: "checkout is not ready to submit"}
	}
	snapshot := o.cart.Snapshot()
	if snapshot.IsEmpty() {
		o.mu.Unlock()
		metrics.RecordSubmission("empty_cart")
		return domain.Order{}, &transport.Failure{Kind: transport.FailureValidation, Message: "cart is empty, nothing to checkout"}
	}
	draft := domain.OrderDraft{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		Shipping:       o.shipping,
		PaymentMethod:  o.method,
		CartSnapshot:   snapshot,
		CreatedAt:      time.Now().UTC(),
	}
	o.draft = &draft
	o.state = StateSubmitting
	o.mu.Unlock()

	order, err := o.backend.CreateOrder(ctx, draft)
	if err != nil {
		o.mu.Lock()
		o.state = StateSelectingPayment
		o.mu.Unlock()
		metrics.RecordSubmission("error")
		return domain.Order{}, err
	}

	// Branch on the declared method of the resulting order, not the
	// requested one: the backend has the final word.
	method := order.PaymentMethod
	if method == "" {
		method = draft.PaymentMethod
	}

	if !method.IsGateway() {
		o.cart.Clear()
		o.mu.Lock()
		o.order = &order
		o.state = StateConfirmed
		o.mu.Unlock()
		metrics.RecordSubmission("confirmed")
		return order, nil
	}

	redirectURL := order.RedirectURL
	if redirectURL == "" {
		redirectURL, err = o.backend.CreatePaymentURL(ctx, order.ID)
		if err != nil {
			// The order exists server-side; only the handoff failed.
			// Surface the failure and let the caller retry payment.
			o.mu.Lock()
			o.order = &order
			o.state = StateSelectingPayment
			o.mu.Unlock()
			metrics.RecordSubmission("error")
			return domain.Order{}, err
		}
	}

	// Gateway handoff: the cart is cleared only after the provider
	// confirms, which happens outside this flow.
	o.mu.Lock()
	o.order = &order
	o.redirectURL = redirectURL
	o.state = StateRedirectingToGateway
	o.mu.Unlock()
	metrics.RecordSubmission("redirected")
	return order, nil
}

// Reset returns a terminal or abandoned checkout to the beginning.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting {
		return
	}
	o.state = StateCollectingShipping
	o.shipping = domain.ShippingInfo{}
	o.method = ""
	o.draft = nil
	o.order = nil
	o.redirectURL = ""
}

func validateShipping(info domain.ShippingInfo) error {
	missing := ""
	switch {
	case strings.TrimSpace(info.FullName) == "":
		missing = "full_name"
	case strings.TrimSpace(info.Phone) == "":
		missing = "phone"
	case strings.TrimSpace(info.AddressLine) == "":
		missing = "address_line"
	case strings.TrimSpace(info.City) == "":
		missing = "city"
	case strings.TrimSpace(info.Country) == "":
		missing = "country"
	}
	if missing != "" {
		return &transport.Failure{Kind: transport.FailureValidation, Message: missing + " is required"}
	}
	return nil
}
