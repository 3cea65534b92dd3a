// Package cart holds the customer's cart. It is owned by the client, never fed
// by the broadcaster, and saved to its Store after every mutation.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// Line is one product in the cart. Name and price are captured when the
// product is first added.
type Line struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Store persists the full line list.
type Store interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
}

type Cart struct {
	mu    sync.Mutex
	lines []Line
	store Store
	log   *slog.Logger
}

// New restores the cart from store.
func New(ctx context.Context, store Store, logger *slog.Logger) (*Cart, error) {
	lines, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore cart: %w", err)
	}
	lines = slices.DeleteFunc(lines, func(l Line) bool { return l.Quantity <= 0 })
	return &Cart{
		lines: lines,
		store: store,
		log:   logger.With("component", "cart"),
	}, nil
}

// Add increments the line for p, or inserts it with quantity 1.
func (c *Cart) Add(ctx context.Context, p entity.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Category:  p.Category,
			Quantity:  1,
		})
	}
	return c.save(ctx)
}

// SetQuantity sets the quantity of an existing line. n <= 0 removes the line;
// an id not in the cart is ignored.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(productID)
	if i < 0 {
		return nil
	}
	if n <= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
	} else {
		c.lines[i].Quantity = n
	}
	return c.save(ctx)
}

func (c *Cart) Remove(ctx context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(productID)
	if i < 0 {
		return nil
	}
	c.lines = slices.Delete(c.lines, i, i+1)
	return c.save(ctx)
}

func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	return c.save(ctx)
}

// Total sums price times quantity using the prices captured at add time.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the number of items, for badge display.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

// OrderLines converts the cart into checkout lines.
func (c *Cart) OrderLines() []entity.OrderLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]entity.OrderLine, len(c.lines))
	for i, l := range c.lines {
		out[i] = entity.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.ProductID == productID })
}

// save runs under c.mu so saves land in mutation order.
func (c *Cart) save(ctx context.Context) error {
	if err := c.store.Save(ctx, slices.Clone(c.lines)); err != nil {
		c.log.Error("Failed to save cart", "err", err)
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}
