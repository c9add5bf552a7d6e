package domain

import "time"

// Money is an amount in minor currency units (cents).
type Money int64

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentGatewayA       PaymentMethod = "gateway_a"
	PaymentGatewayB       PaymentMethod = "gateway_b"
)

// IsGateway reports whether the method hands the buyer off to an
// external payment provider.
func (m PaymentMethod) IsGateway() bool {
	return m == PaymentGatewayA || m == PaymentGatewayB
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "UNPAID"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Credential is the access/refresh token pair identifying an
// authenticated session. The zero value means anonymous.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// ProductRef identifies a product and carries the unit price observed
// when the line was added. The engine never re-reads prices on its own.
type ProductRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
}

type CartLine struct {
	ID       string     `json:"id"`
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
	// LineTotal is derived; it is recomputed from UnitPrice and
	// Quantity after every mutation, never cached across them.
	LineTotal Money `json:"line_total"`
	// Dirty marks a local mutation the server has not acknowledged.
	Dirty bool `json:"dirty"`
}

type Cart struct {
	Lines            []CartLine `json:"lines"`
	Subtotal         Money      `json:"subtotal"`
	Discount         Money      `json:"discount"`
	ShippingEstimate Money      `json:"shipping_estimate"`
	Total            Money      `json:"total"`
	Dirty            bool       `json:"dirty"`
}

// Clone returns a deep copy so holders of a snapshot never observe
// later engine mutations.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	return out
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

type ShippingInfo struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Note        string `json:"note,omitempty"`
}

// OrderDraft is the immutable submission payload: a deep cart snapshot
// plus shipping and payment choices captured at submit time.
type OrderDraft struct {
	ID             string        `json:"draft_id"`
	IdempotencyKey string        `json:"idempotency_key"`
	Shipping       ShippingInfo  `json:"shipping"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	CartSnapshot   Cart          `json:"cart_snapshot"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Order is the server-owned read view. The client observes Status and
// PaymentStatus only via re-fetch, never mutates them.
type Order struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalAmount   Money         `json:"total_amount"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
}

// SessionFlags is the minimal identity persisted alongside the cart.
// It never carries raw tokens.
type SessionFlags struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
}

type PersistedSnapshot struct {
	Cart    Cart         `json:"cart"`
	Session SessionFlags `json:"session"`
	SavedAt time.Time    `json:"saved_at"`
}
