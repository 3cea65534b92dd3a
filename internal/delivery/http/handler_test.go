package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/messaging"
	"github.com/egannguyen/go-food-ordering/internal/repository/memory"
	"github.com/egannguyen/go-food-ordering/internal/service"
)

type nopEvents struct{}

func (nopEvents) Publish(ctx context.Context, topic string, ev entity.ChangeEvent) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	h := NewHandler(
		service.NewProductService(store.Products(), nopEvents{}),
		service.NewOrderService(store.Orders(), store.Products(), nopEvents{}, messaging.Discard{}),
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(EnableCORS(mux))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProductCRUD(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/products", map[string]any{
		"name": "Burger Classique", "price": 11.99, "category": "Burgers", "isActive": true, "stock": 50,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[entity.Product](t, resp)
	assert.Equal(t, "11.99", created.Price.StringFixed(2))

	resp = do(t, http.MethodPut, srv.URL+"/api/products/1", map[string]any{
		"name": "Burger Classique", "price": 12.5, "category": "Burgers", "isActive": false, "stock": 50,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[entity.Product](t, resp)
	assert.False(t, updated.Active)
	assert.Equal(t, int64(2), updated.Revision)

	resp = do(t, http.MethodGet, srv.URL+"/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]entity.Product](t, resp), 1, "admin listing includes inactive products")

	resp = do(t, http.MethodDelete, srv.URL+"/api/products/1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/products/1", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[ErrorBody](t, resp)
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.NotEmpty(t, body.Message)
}

func TestValidationErrorBody(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"customerInfo": map[string]string{"name": "", "email": "nope", "phone": "1"},
		"items":        []any{},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorBody](t, resp)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.NotEmpty(t, body.Errors)

	resp = do(t, http.MethodGet, srv.URL+"/api/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/products", map[string]any{
		"name": "Pizza Margherita", "price": "13.99", "category": "Pizzas", "isActive": true, "stock": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"customerInfo": map[string]string{"name": "Ada", "email": "ada@example.com", "phone": "+33 612345678"},
		"items":        []map[string]any{{"id": 1, "quantity": 2, "price": 0.01}},
		"total":        0.02,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[entity.Order](t, resp)
	assert.Equal(t, "27.98", order.Total.StringFixed(2), "client totals are ignored")
	assert.Equal(t, entity.StatusPending, order.Status)

	resp = do(t, http.MethodPatch, srv.URL+"/api/orders/"+order.ID+"/status", map[string]string{"status": "ready"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/api/orders/"+order.ID+"/status", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/api/orders/unknown/status", map[string]string{"status": "ready"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	orders := decode[[]entity.Order](t, resp)
	require.Len(t, orders, 1)
	assert.Equal(t, entity.StatusReady, orders[0].Status)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodOptions, srv.URL+"/api/orders/x/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}
