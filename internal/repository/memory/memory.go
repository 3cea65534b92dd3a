// Package memory keeps products and orders in process memory. It backs the
// server when no DATABASE_URL is configured and the service tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/repository"
)

var (
	_ repository.ProductRepository = (*ProductRepository)(nil)
	_ repository.OrderRepository   = (*OrderRepository)(nil)
)

// Store holds both collections behind one lock so that order placement can
// decrement stock atomically, as the Postgres transaction does.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]entity.Product
	orders   map[string]entity.Order
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		products: make(map[int64]entity.Product),
		orders:   make(map[string]entity.Order),
		now:      time.Now,
	}
}

// Products returns the ProductRepository view of the store.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// Orders returns the OrderRepository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

type ProductRepository struct{ s *Store }

func (r *ProductRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	products := make([]entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b entity.Product) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return entity.Product{}, productNotFound(id)
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p entity.Product) (entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextID++
	p.ID = r.s.nextID
	p.Revision = 1
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.products[p.ID] = p
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, p entity.Product) (entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.products[p.ID]
	if !ok {
		return entity.Product{}, productNotFound(p.ID)
	}
	p.Revision = current.Revision + 1
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = r.s.now()
	r.s.products[p.ID] = p
	return p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.products[id]
	if !ok {
		return 0, productNotFound(id)
	}
	delete(r.s.products, id)
	return current.Revision + 1, nil
}

func (r *ProductRepository) Seed(ctx context.Context, products []entity.Product) error {
	r.s.mu.Lock()
	seeded := len(r.s.products) > 0
	r.s.mu.Unlock()
	if seeded {
		return nil
	}
	for _, p := range products {
		if _, err := r.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.Name, err)
		}
	}
	return nil
}

type OrderRepository struct{ s *Store }

func (r *OrderRepository) Create(ctx context.Context, o entity.Order) (entity.Order, []entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[o.ID]; exists {
		return entity.Order{}, nil, fmt.Errorf("failed to insert order: duplicate id %s", o.ID)
	}

	// Check every line first so a failure leaves stock untouched.
	for _, item := range o.Items {
		p, ok := r.s.products[item.ProductID]
		if !ok {
			return entity.Order{}, nil, productNotFound(item.ProductID)
		}
		if p.Stock < item.Quantity {
			return entity.Order{}, nil, &entity.ValidationError{
				Message: fmt.Sprintf("insufficient stock for %s", item.Name),
				Errors:  []entity.FieldError{{Field: "items.quantity", Message: "Insufficient stock"}},
			}
		}
	}

	now := r.s.now()
	touched := make([]entity.Product, 0, len(o.Items))
	for _, item := range o.Items {
		p := r.s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.Revision++
		p.UpdatedAt = now
		r.s.products[p.ID] = p
		touched = append(touched, p)
	}

	o.Revision = 1
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	o.Items = slices.Clone(o.Items)
	r.s.orders[o.ID] = o
	return o, touched, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return entity.Order{}, &entity.NotFoundError{Entity: "order", ID: id}
	}
	return o, nil
}

func (r *OrderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	orders := make([]entity.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		orders = append(orders, o)
	}
	slices.SortFunc(orders, func(a, b entity.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus) (entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return entity.Order{}, &entity.NotFoundError{Entity: "order", ID: id}
	}
	if err := o.Status.CanTransition(status); err != nil {
		return entity.Order{}, err
	}
	o.Status = status
	o.Revision++
	o.UpdatedAt = r.s.now()
	r.s.orders[id] = o
	return o, nil
}

func productNotFound(id int64) error {
	return &entity.NotFoundError{Entity: "product", ID: strconv.FormatInt(id, 10)}
}
