// Package api is the REST client used for bulk fetches and mutations.
// Every failure is returned as one of the entity error kinds.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]entity.Product, error) {
	var products []entity.Product
	err := c.do(ctx, http.MethodGet, "/api/products", nil, &products, target{"product", ""})
	return products, err
}

func (c *Client) GetProduct(ctx context.Context, id int64) (entity.Product, error) {
	var p entity.Product
	err := c.do(ctx, http.MethodGet, productPath(id), nil, &p, productTarget(id))
	return p, err
}

func (c *Client) CreateProduct(ctx context.Context, p entity.Product) (entity.Product, error) {
	var created entity.Product
	err := c.do(ctx, http.MethodPost, "/api/products", p, &created, target{"product", ""})
	return created, err
}

func (c *Client) UpdateProduct(ctx context.Context, p entity.Product) (entity.Product, error) {
	var updated entity.Product
	err := c.do(ctx, http.MethodPut, productPath(p.ID), p, &updated, productTarget(p.ID))
	return updated, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, nil, productTarget(id))
}

func (c *Client) ListOrders(ctx context.Context) ([]entity.Order, error) {
	var orders []entity.Order
	err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders, target{"order", ""})
	return orders, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (entity.Order, error) {
	var o entity.Order
	err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &o, target{"order", id})
	return o, err
}

func (c *Client) PlaceOrder(ctx context.Context, cmd entity.PlaceOrder) (entity.Order, error) {
	var o entity.Order
	err := c.do(ctx, http.MethodPost, "/api/orders", cmd, &o, target{"order", ""})
	return o, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status entity.OrderStatus) (entity.Order, error) {
	var o entity.Order
	body := entity.UpdateOrderStatus{Status: status}
	err := c.do(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(id)+"/status", body, &o, target{"order", id})
	return o, err
}

// target names the entity a request operates on, for NotFoundError.
type target struct {
	entity string
	id     string
}

func productTarget(id int64) target { return target{"product", strconv.FormatInt(id, 10)} }

func productPath(id int64) string { return "/api/products/" + strconv.FormatInt(id, 10) }

type errorBody struct {
	Message string              `json:"message"`
	Status  int                 `json:"status"`
	Errors  []entity.FieldError `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, t target) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &entity.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(op, resp, t)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &entity.TransientError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func decodeError(op string, resp *http.Response, t target) error {
	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&eb)
	if eb.Message == "" {
		eb.Message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return &entity.ValidationError{Message: eb.Message, Errors: eb.Errors}
	case resp.StatusCode == http.StatusNotFound:
		return &entity.NotFoundError{Entity: t.entity, ID: t.id}
	case resp.StatusCode >= 500:
		return &entity.TransientError{Op: op, Err: fmt.Errorf("server returned %d: %s", resp.StatusCode, eb.Message)}
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, eb.Message)
	}
}
