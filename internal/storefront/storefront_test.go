package storefront

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-food-ordering/internal/broadcast"
	"github.com/egannguyen/go-food-ordering/internal/client/api"
	"github.com/egannguyen/go-food-ordering/internal/client/cart"
	"github.com/egannguyen/go-food-ordering/internal/client/session"
	httpDelivery "github.com/egannguyen/go-food-ordering/internal/delivery/http"
	"github.com/egannguyen/go-food-ordering/internal/delivery/ws"
	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/messaging"
	"github.com/egannguyen/go-food-ordering/internal/repository/memory"
	"github.com/egannguyen/go-food-ordering/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type backend struct {
	url      string
	wsURL    string
	products *service.ProductService
	orders   *service.OrderService
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	store := memory.NewStore()
	b := broadcast.New(discard)
	t.Cleanup(func() { b.Close() })

	products := service.NewProductService(store.Products(), b)
	orders := service.NewOrderService(store.Orders(), store.Products(), b, messaging.Discard{})

	mux := http.NewServeMux()
	httpDelivery.NewHandler(products, orders).RegisterRoutes(mux)
	ws.NewHandler(b, discard, time.Second, 5*time.Second).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &backend{
		url:      srv.URL,
		wsURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		products: products,
		orders:   orders,
	}
}

func (b *backend) seed(t *testing.T, name, category, price string, active bool) entity.Product {
	t.Helper()
	p, err := b.products.CreateProduct(context.Background(), entity.Product{
		Name: name, Category: category, Price: decimal.RequireFromString(price), Active: active, Stock: 10,
	})
	require.NoError(t, err)
	return p
}

func fastSession() session.Config {
	return session.Config{MaxAttempts: 3, InitialDelay: 5 * time.Millisecond, Multiplier: 2, MaxDelay: 20 * time.Millisecond}
}

func newStorefront(t *testing.T, b *backend, admin bool, wsURL string) *Storefront {
	t.Helper()
	return newStorefrontWithDialer(t, b, admin, session.WebSocketDialer{URL: wsURL})
}

func newStorefrontWithDialer(t *testing.T, b *backend, admin bool, dialer session.Dialer) *Storefront {
	t.Helper()
	c, err := cart.New(context.Background(), cart.NewFileStore(filepath.Join(t.TempDir(), "cart.json")), discard)
	require.NoError(t, err)

	sf := New(api.New(b.url, time.Second), dialer, c,
		Config{Admin: admin, Session: fastSession()}, discard)
	t.Cleanup(func() { sf.Close() })
	require.NoError(t, sf.Start(context.Background()))
	return sf
}

var customer = entity.CustomerInfo{Name: "Ada", Email: "ada@example.com", Phone: "+33 612345678"}

func TestCustomerCatalogStaysInSync(t *testing.T) {
	b := newBackend(t)
	burger := b.seed(t, "Burger Classique", "Burgers", "11.99", true)
	b.seed(t, "Seasonal Tart", "Desserts", "6.50", false)

	sf := newStorefront(t, b, false, b.wsURL)
	require.Equal(t, 1, sf.Products.Len(), "customers only see active products")
	require.Eventually(t, func() bool { return sf.Joined(entity.TopicProducts) }, 2*time.Second, 5*time.Millisecond)

	pizza := b.seed(t, "Pizza Margherita", "Pizzas", "13.99", true)
	assert.Eventually(t, func() bool { _, ok := sf.Products.Get(pizza.ID); return ok }, 2*time.Second, 5*time.Millisecond)

	burger.Active = false
	_, err := b.products.UpdateProduct(context.Background(), burger)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { _, ok := sf.Products.Get(burger.ID); return !ok }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, b.products.DeleteProduct(context.Background(), pizza.ID))
	assert.Eventually(t, func() bool { return sf.Products.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestCheckoutTracksOrder(t *testing.T) {
	b := newBackend(t)
	burger := b.seed(t, "Burger Classique", "Burgers", "11.99", true)

	sf := newStorefront(t, b, false, b.wsURL)
	require.Eventually(t, func() bool { return sf.Joined(entity.TopicProducts) }, 2*time.Second, 5*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, sf.AddToCart(ctx, burger.ID))
	require.NoError(t, sf.AddToCart(ctx, burger.ID))
	assert.Equal(t, "23.98", sf.Cart().Total().StringFixed(2))

	order, err := sf.Checkout(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, "23.98", order.Total.StringFixed(2))
	assert.Zero(t, sf.Cart().Count(), "cart is cleared after checkout")

	got, ok := sf.Orders.Get(order.ID)
	require.True(t, ok)
	assert.Equal(t, entity.StatusPending, got.Status)

	require.Eventually(t, func() bool { return sf.Joined(entity.OrderTopic(order.ID)) }, 2*time.Second, 5*time.Millisecond)
	_, err = b.orders.UpdateOrderStatus(ctx, entity.UpdateOrderStatus{OrderID: order.ID, Status: entity.StatusPreparing})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		o, _ := sf.Orders.Get(order.ID)
		return o.Status == entity.StatusPreparing
	}, 2*time.Second, 5*time.Millisecond)

	// Stock decrements reach the catalog through the products topic.
	p, _ := sf.Products.Get(burger.ID)
	assert.Equal(t, 8, p.Stock)
}

func TestCheckoutErrors(t *testing.T) {
	b := newBackend(t)
	sf := newStorefront(t, b, false, b.wsURL)
	ctx := context.Background()

	_, err := sf.Checkout(ctx, customer)
	assert.True(t, entity.IsValidation(err))

	assert.True(t, entity.IsNotFound(sf.AddToCart(ctx, 404)))

	burger := b.seed(t, "Burger Classique", "Burgers", "11.99", true)
	require.NoError(t, sf.Refresh(ctx))
	require.NoError(t, sf.AddToCart(ctx, burger.ID))

	_, err = sf.Checkout(ctx, entity.CustomerInfo{Name: "Ada", Email: "not-an-email", Phone: "1"})
	assert.True(t, entity.IsValidation(err))
	assert.Equal(t, 1, sf.Cart().Count(), "a rejected order keeps the cart")
}

func TestAdminSeesEveryOrder(t *testing.T) {
	b := newBackend(t)
	burger := b.seed(t, "Burger Classique", "Burgers", "11.99", true)
	b.seed(t, "Seasonal Tart", "Desserts", "6.50", false)

	sf := newStorefront(t, b, true, b.wsURL)
	assert.Equal(t, 2, sf.Products.Len(), "admins see inactive products")
	require.Eventually(t, func() bool { return sf.Joined(entity.TopicAdmin) }, 2*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	placed, err := b.orders.PlaceOrder(ctx, entity.PlaceOrder{Customer: customer, Lines: []entity.OrderLine{{ProductID: burger.ID, Quantity: 1}}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := sf.Orders.Get(placed.ID); return ok }, 2*time.Second, 5*time.Millisecond)

	updated, err := sf.Orders.UpdateStatus(ctx, placed.ID, entity.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReady, updated.Status)

	_, err = sf.Orders.UpdateStatus(ctx, placed.ID, entity.StatusConfirmed)
	assert.True(t, entity.IsValidation(err))
	o, _ := sf.Orders.Get(placed.ID)
	assert.Equal(t, entity.StatusReady, o.Status)
}

func TestFetchOnlyWhenBroadcasterDown(t *testing.T) {
	b := newBackend(t)
	b.seed(t, "Burger Classique", "Burgers", "11.99", true)

	sf := newStorefront(t, b, false, "ws://127.0.0.1:1/ws")
	assert.Equal(t, 1, sf.Products.Len(), "bulk fetch works without the broadcaster")
	assert.Eventually(t, func() bool { return sf.ConnErr() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, sf.Healthy())
}

// heldDialer lets the first dial through and holds every later one until
// released, so a test can act while the storefront is offline.
type heldDialer struct {
	inner   session.WebSocketDialer
	release chan struct{}

	mu    sync.Mutex
	conns []session.Conn
}

func (d *heldDialer) Dial(ctx context.Context) (session.Conn, error) {
	d.mu.Lock()
	first := len(d.conns) == 0
	d.mu.Unlock()
	if !first {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c, err := d.inner.Dial(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *heldDialer) drop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[len(d.conns)-1].Close()
}

func TestReconnectCatchesUpMissedEvents(t *testing.T) {
	b := newBackend(t)
	burger := b.seed(t, "Burger Classique", "Burgers", "11.99", true)

	d := &heldDialer{inner: session.WebSocketDialer{URL: b.wsURL, PongWait: 5 * time.Second}, release: make(chan struct{})}
	sf := newStorefrontWithDialer(t, b, false, d)
	require.Eventually(t, func() bool { return sf.Joined(entity.TopicProducts) }, 2*time.Second, 5*time.Millisecond)

	d.drop()
	require.Eventually(t, func() bool { return !sf.Healthy() }, 2*time.Second, 5*time.Millisecond)

	burger.Name = "Burger Deluxe"
	_, err := b.products.UpdateProduct(context.Background(), burger)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	p, _ := sf.Products.Get(burger.ID)
	assert.Equal(t, "Burger Classique", p.Name, "no live updates while offline")

	close(d.release)
	assert.Eventually(t, func() bool {
		p, _ := sf.Products.Get(burger.ID)
		return p.Name == "Burger Deluxe"
	}, 2*time.Second, 5*time.Millisecond)
}
