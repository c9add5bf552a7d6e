package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"storefront/domain"
	"storefront/transport"
)

// Client is the typed surface over the backend contract. Every call
// goes through the authenticated pipeline; failures come back as
// *transport.Failure.
type Client struct {
	pipe *transport.Pipeline
}

func NewClient(pipe *transport.Pipeline) *Client {
	return &Client{pipe: pipe}
}

type wireCartLine struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	UnitPrice domain.Money `json:"unit_price"`
	Quantity  int          `json:"quantity"`
}

type wireCart struct {
	Lines            []wireCartLine `json:"lines"`
	Discount         domain.Money   `json:"discount"`
	ShippingEstimate domain.Money   `json:"shipping_estimate"`
}

func (w wireCart) toDomain() domain.Cart {
	cart := domain.Cart{
		Discount:         w.Discount,
		ShippingEstimate: w.ShippingEstimate,
		Lines:            make([]domain.CartLine, 0, len(w.Lines)),
	}
	for _, l := range w.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID: uuid.NewString(),
			Product: domain.ProductRef{
				ID:        l.ProductID,
				Name:      l.Name,
				UnitPrice: l.UnitPrice,
			},
			Quantity: l.Quantity,
		})
	}
	return cart
}

// FetchCart returns the server's authoritative cart view. Lines come
// back clean; totals are the engine's to recompute.
func (c *Client) FetchCart(ctx context.Context) (domain.Cart, error) {
	resp, err := c.pipe.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/cart"})
	if err != nil {
		return domain.Cart{}, err
	}
	var wire wireCart
	if err := resp.Decode(&wire); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return wire.toDomain(), nil
}

// AddCartLine upserts the line by product: the backend replaces an
// existing line for the same product with the posted state.
func (c *Client) AddCartLine(ctx context.Context, line domain.CartLine) error {
	_, err := c.pipe.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/cart",
		Body: wireCartLine{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			UnitPrice: line.Product.UnitPrice,
			Quantity:  line.Quantity,
		},
	})
	return err
}

func (c *Client) UpdateCartLine(ctx context.Context, line domain.CartLine) error {
	_, err := c.pipe.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   "/cart/" + line.Product.ID,
		Body: map[string]int{
			"quantity": line.Quantity,
		},
	})
	return err
}

func (c *Client) DeleteCartLine(ctx context.Context, productID string) error {
	_, err := c.pipe.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/cart/" + productID,
	})
	return err
}

type wireOrderLine struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	UnitPrice domain.Money `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	LineTotal domain.Money `json:"line_total"`
}

type createOrderRequest struct {
	IdempotencyKey   string               `json:"idempotency_key"`
	ShippingInfo     domain.ShippingInfo  `json:"shipping"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	Lines            []wireOrderLine      `json:"lines"`
	Subtotal         domain.Money         `json:"subtotal"`
	Discount         domain.Money         `json:"discount"`
	ShippingEstimate domain.Money         `json:"shipping_estimate"`
	Total            domain.Money         `json:"total"`
}

// CreateOrder submits the immutable draft and returns the created
// order's read view.
func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	req := createOrderRequest{
		IdempotencyKey:   draft.IdempotencyKey,
		ShippingInfo:     draft.Shipping,
		PaymentMethod:    draft.PaymentMethod,
		Subtotal:         draft.CartSnapshot.Subtotal,
		Discount:         draft.CartSnapshot.Discount,
		ShippingEstimate: draft.CartSnapshot.ShippingEstimate,
		Total:            draft.CartSnapshot.Total,
	}
	for _, l := range draft.CartSnapshot.Lines {
		req.Lines = append(req.Lines, wireOrderLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			UnitPrice: l.Product.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal,
		})
	}
	resp, err := c.pipe.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/orders",
		Body:   req,
	})
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	if err := resp.Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

// CreatePaymentURL requests a gateway redirect target for flows where
// the order and the payment URL are created separately.
func (c *Client) CreatePaymentURL(ctx context.Context, orderID string) (string, error) {
	resp, err := c.pipe.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/payments/create-url",
		Body:   map[string]string{"order_id": orderID},
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", fmt.Errorf("decode payment url: %w", err)
	}
	if payload.RedirectURL == "" {
		return "", &transport.Failure{Kind: transport.FailureServer, Message: "payment url missing from response"}
	}
	return payload.RedirectURL, nil
}

// FetchOrder re-reads the order's server-owned status fields.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (domain.Order, error) {
	resp, err := c.pipe.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/orders/" + orderID})
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	if err := resp.Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

// Login authenticates and returns the credential pair. It rides the
// pipeline (no credential attached yet) so failures share the typed
// taxonomy.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Credential, error) {
	resp, err := c.pipe.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return domain.Credential{}, err
	}
	var token tokenResponse
	if err := resp.Decode(&token); err != nil {
		return domain.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return domain.Credential{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}
