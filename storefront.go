// Package storefront is the client-side session and commerce-state
// layer of the storefront: it keeps the authenticated request channel
// alive across credential expiry, maintains the canonical cart under
// optimistic edits and server reconciliation, and drives checkout
// through its single handoff to payment or confirmation. It is a
// library; the presentation layer owns rendering and navigation.
package storefront

import (
	"context"
	"log"
	"net/http"

	"storefront/api"
	"storefront/cart"
	"storefront/checkout"
	"storefront/config"
	"storefront/domain"
	"storefront/notify"
	"storefront/persist"
	"storefront/persist/file"
	"storefront/session"
	"storefront/transport"
)

// Client wires the component graph and is the single entry point the
// presentation layer holds.
type Client struct {
	cfg config.Config

	Session  *session.Manager
	Cart     *cart.Engine
	Checkout *checkout.Orchestrator
	API      *api.Client

	syncer       *cart.Syncer
	synchronizer *persist.Synchronizer
	notifier     notify.Notifier
}

type options struct {
	httpClient    *http.Client
	snapshotStore persist.Store
	tokenStore    session.TokenStore
	notifier      notify.Notifier
	onTeardown    func()
}

type Option func(*options)

// WithHTTPClient substitutes the pipeline's HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithSnapshotStore substitutes the durable snapshot store.
func WithSnapshotStore(s persist.Store) Option {
	return func(o *options) { o.snapshotStore = s }
}

// WithTokenStore substitutes the session manager's token entry.
func WithTokenStore(s session.TokenStore) Option {
	return func(o *options) { o.tokenStore = s }
}

// WithNotifier substitutes the user-facing notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithTeardownHook registers the navigation hook fired when a renewal
// failure forces the session down.
func WithTeardownHook(fn func()) Option {
	return func(o *options) { o.onTeardown = fn }
}

func New(cfg config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tokenStore := o.tokenStore
	if tokenStore == nil {
		if cfg.TokenEncryptionKey != "" {
			fts, err := session.NewFileTokenStore(cfg.TokenPath, cfg.TokenEncryptionKey)
			if err != nil {
				return nil, err
			}
			tokenStore = fts
		} else {
			log.Printf("storefront: no token encryption key configured, credentials held in memory only")
			tokenStore = &session.MemoryTokenStore{}
		}
	}

	tokenClient := &api.TokenClient{BaseURL: cfg.APIBaseURL, HTTPClient: o.httpClient}
	sess := session.NewManager(tokenClient.Refresh, tokenStore)

	pipe := transport.NewPipeline(cfg.APIBaseURL, sess, cfg.RequestTimeout)
	if o.httpClient != nil {
		pipe.WithHTTPClient(o.httpClient)
	}
	apiClient := api.NewClient(pipe)

	engine := cart.NewEngine()
	syncer := cart.NewSyncer(engine, apiClient, cart.RetryPolicy{
		MaxAttempts: cfg.CartSyncMaxRetries,
		BaseDelay:   cfg.CartSyncRetryBase,
		MaxDelay:    cfg.CartSyncRetryMax,
	})

	snapshotStore := o.snapshotStore
	if snapshotStore == nil {
		snapshotStore = file.NewStore(cfg.SnapshotPath)
	}
	synchronizer := persist.NewSynchronizer(snapshotStore)

	notifier := o.notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	c := &Client{
		cfg:          cfg,
		Session:      sess,
		Cart:         engine,
		Checkout:     checkout.NewOrchestrator(engine, apiClient),
		API:          apiClient,
		syncer:       syncer,
		synchronizer: synchronizer,
		notifier:     notifier,
	}

	// Rehydrate before the change hooks attach, so restore does not
	// echo straight back into the store.
	snapshot := synchronizer.Restore()
	if !snapshot.Cart.IsEmpty() {
		engine.Restore(snapshot.Cart)
	}
	engine.OnChange(synchronizer.ObserveCart)
	sess.OnChange(synchronizer.ObserveSession)
	sess.OnTeardown(func() {
		engine.DetachFromServer()
		_ = notifier.Notify(context.Background(), "Your session has expired. Please sign in again.")
		if o.onTeardown != nil {
			o.onTeardown()
		}
	})

	return c, nil
}

// Login authenticates, installs the credential pair, reconciles the
// guest cart against the server's, and replays unacknowledged lines.
func (c *Client) Login(ctx context.Context, email, password string) error {
	cred, err := c.API.Login(ctx, email, password)
	if err != nil {
		return err
	}
	c.Session.SetCredential(cred)
	if _, err := c.syncer.Refresh(ctx); err != nil {
		// The merge settles on a later reconcile; login itself
		// succeeded.
		log.Printf("storefront: post-login cart refresh failed: %v", err)
		c.Cart.MarkDirty()
		return nil
	}
	if err := c.syncer.PushDirty(ctx); err != nil {
		log.Printf("storefront: post-login cart push failed: %v", err)
	}
	return nil
}

// Logout drops the credential and detaches the cart from the server.
// It is a purely local operation.
func (c *Client) Logout() {
	c.Session.Clear()
	c.Cart.DetachFromServer()
}

// AddToCart applies the optimistic edit, then syncs it in the
// background contract: a sync failure leaves the local edit intact.
func (c *Client) AddToCart(ctx context.Context, product domain.ProductRef, qty int) domain.Cart {
	snapshot := c.Cart.AddLine(product, qty)
	if line, ok := lineFor(snapshot, product.ID); ok && c.authenticated() {
		if err := c.syncer.PushAdd(ctx, line); err != nil {
			log.Printf("storefront: cart add sync failed: %v", err)
		}
	}
	return c.Cart.Snapshot()
}

// SetQuantity applies the optimistic edit; qty below one removes the
// line.
func (c *Client) SetQuantity(ctx context.Context, productID string, qty int) domain.Cart {
	if qty < 1 {
		return c.RemoveFromCart(ctx, productID)
	}
	snapshot := c.Cart.SetQuantity(productID, qty)
	if line, ok := lineFor(snapshot, productID); ok && c.authenticated() {
		if err := c.syncer.PushUpdate(ctx, line); err != nil {
			log.Printf("storefront: cart update sync failed: %v", err)
		}
	}
	return c.Cart.Snapshot()
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) domain.Cart {
	c.Cart.RemoveLine(productID)
	if c.authenticated() {
		if err := c.syncer.PushRemove(ctx, productID); err != nil {
			log.Printf("storefront: cart remove sync failed: %v", err)
		}
	}
	return c.Cart.Snapshot()
}

// RefreshCart pulls the server's cart and reconciles it in.
func (c *Client) RefreshCart(ctx context.Context) (domain.Cart, error) {
	return c.syncer.Refresh(ctx)
}

// OrderStatus re-reads the server-owned order view.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (domain.Order, error) {
	return c.API.FetchOrder(ctx, orderID)
}

func (c *Client) authenticated() bool {
	return !c.Session.Credential().IsZero()
}

func lineFor(cart domain.Cart, productID string) (domain.CartLine, bool) {
	for _, line := range cart.Lines {
		if line.Product.ID == productID {
			return line, true
		}
	}
	return domain.CartLine{}, false
}
