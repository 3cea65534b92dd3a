// Package storefront wires one Connection Session, the entity caches and the
// cart into the client-side service a UI drives.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/egannguyen/go-food-ordering/internal/client/cache"
	"github.com/egannguyen/go-food-ordering/internal/client/cart"
	"github.com/egannguyen/go-food-ordering/internal/client/session"
	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// API is the REST surface the storefront needs.
type API interface {
	cache.ProductAPI
	cache.OrderAPI
	GetOrder(ctx context.Context, id string) (entity.Order, error)
}

type Config struct {
	// Admin surfaces see inactive products and every order, and join the
	// admin topic.
	Admin    bool
	Session  session.Config
	OnChange func()
}

type Storefront struct {
	api     API
	session *session.Session
	cart    *cart.Cart
	cfg     Config
	log     *slog.Logger

	Products *cache.Products
	Orders   *cache.Orders

	mu        sync.Mutex
	ctx       context.Context
	tracked   []string
	connected bool // at least one connection succeeded
	wg        sync.WaitGroup
}

func New(api API, dialer session.Dialer, c *cart.Cart, cfg Config, logger *slog.Logger) *Storefront {
	s := &Storefront{
		api:     api,
		session: session.New(dialer, cfg.Session, logger),
		cart:    c,
		cfg:     cfg,
		log:     logger.With("component", "storefront"),
	}

	s.Products = cache.NewProducts(api, cache.ProductsConfig{
		ActiveOnly: !cfg.Admin,
		OnChange:   cfg.OnChange,
	})
	ordersCfg := cache.OrdersConfig{OnChange: cfg.OnChange}
	if !cfg.Admin {
		ordersCfg.Fetch = s.fetchTracked
		ordersCfg.OnPlaced = func(o entity.Order) { s.addTracked(o.ID) }
	}
	s.Orders = cache.NewOrders(api, ordersCfg)

	s.session.OnEvent(s.dispatch)
	s.session.OnStatus(s.onStatus)
	return s
}

// Start joins the surface's topics, opens the session and loads both
// caches. A broadcaster that cannot be reached leaves the storefront in
// fetch-only mode rather than failing Start.
func (s *Storefront) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	topics := []string{entity.TopicProducts}
	if s.cfg.Admin {
		topics = append(topics, entity.TopicAdmin)
	}
	for _, t := range topics {
		if err := s.session.Join(t); err != nil {
			return fmt.Errorf("failed to join %s: %w", t, err)
		}
	}
	if err := s.session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return s.Refresh(ctx)
}

// Refresh reloads both caches from the REST API.
func (s *Storefront) Refresh(ctx context.Context) error {
	var errs []error
	for _, load := range []func(context.Context) error{s.Products.Load, s.Orders.Load} {
		if err := load(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddToCart adds one unit of a product currently shown in the catalog.
func (s *Storefront) AddToCart(ctx context.Context, productID int64) error {
	p, ok := s.Products.Get(productID)
	if !ok {
		return &entity.NotFoundError{Entity: "product", ID: fmt.Sprint(productID)}
	}
	if !p.Active {
		return &entity.ValidationError{Message: fmt.Sprintf("%s is not available", p.Name)}
	}
	return s.cart.Add(ctx, p)
}

// Checkout places an order for the cart contents. On success the cart is
// cleared and the order's topic is joined so status changes stream in.
func (s *Storefront) Checkout(ctx context.Context, customer entity.CustomerInfo) (entity.Order, error) {
	lines := s.cart.OrderLines()
	if len(lines) == 0 {
		return entity.Order{}, &entity.ValidationError{
			Message: "cart is empty",
			Errors:  []entity.FieldError{{Field: "items", Message: "Cart is empty"}},
		}
	}

	order, err := s.Orders.Place(ctx, entity.PlaceOrder{Customer: customer, Lines: lines})
	if err != nil {
		return entity.Order{}, err
	}
	s.log.Info("✅ Order placed", "order_id", order.ID, "total", order.Total.StringFixed(2))

	if err := s.cart.Clear(ctx); err != nil {
		s.log.Error("Failed to clear cart after checkout", "order_id", order.ID, "err", err)
	}
	if err := s.track(order.ID); err != nil {
		s.log.Warn("Failed to track order", "order_id", order.ID, "err", err)
	}
	return order, nil
}

// Track follows an existing order's status updates.
func (s *Storefront) Track(ctx context.Context, orderID string) error {
	if err := s.track(orderID); err != nil {
		return err
	}
	if err := s.Orders.Load(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
		return err
	}
	return nil
}

func (s *Storefront) track(orderID string) error {
	s.addTracked(orderID)
	return s.session.Join(entity.OrderTopic(orderID))
}

func (s *Storefront) addTracked(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.tracked, orderID) {
		s.tracked = append(s.tracked, orderID)
	}
}

func (s *Storefront) Cart() *cart.Cart { return s.cart }

// Healthy reports whether live updates are flowing.
func (s *Storefront) Healthy() bool { return s.session.Healthy() }

// Joined reports whether topic is acknowledged on the live connection.
func (s *Storefront) Joined(topic string) bool { return s.session.Joined(topic) }

// ConnErr returns the session's terminal error once reconnects are exhausted.
func (s *Storefront) ConnErr() error { return s.session.Err() }

// Reconnect retries the broadcaster after a terminal failure.
func (s *Storefront) Reconnect() { s.session.Reconnect() }

// OnStatus registers a listener for connection health changes.
func (s *Storefront) OnStatus(fn func(session.Status)) { s.session.OnStatus(fn) }

func (s *Storefront) Close() error {
	err := s.session.Close()
	s.wg.Wait()
	return err
}

// dispatch routes each Change Event to the cache that owns its entity kind.
func (s *Storefront) dispatch(topic string, ev entity.ChangeEvent) {
	switch ev.Kind {
	case entity.ProductCreated, entity.ProductUpdated, entity.ProductDeleted:
		s.Products.ApplyEvent(ev)
	case entity.OrderCreated, entity.OrderUpdated:
		s.Orders.ApplyEvent(ev)
	default:
		s.log.Warn("Ignoring unknown event", "topic", topic, "kind", ev.Kind)
	}
}

// onStatus reloads the caches after a reconnect to catch up on events
// published while the session was offline.
func (s *Storefront) onStatus(st session.Status) {
	if st.Err != nil {
		s.log.Warn("Live updates unavailable, running fetch-only", "err", st.Err)
	}
	if st.State != session.Connected {
		return
	}

	s.mu.Lock()
	reconnect := s.connected
	s.connected = true
	ctx := s.ctx
	s.mu.Unlock()
	if !reconnect || ctx == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Refresh(ctx); err != nil {
			s.log.Warn("Catch-up reload failed", "err", err)
		}
	}()
}

// fetchTracked loads the orders this customer is following.
func (s *Storefront) fetchTracked(ctx context.Context) ([]entity.Order, error) {
	s.mu.Lock()
	ids := slices.Clone(s.tracked)
	s.mu.Unlock()

	orders := make([]entity.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.api.GetOrder(ctx, id)
		if entity.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
