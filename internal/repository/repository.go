package repository

import (
	"context"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// ProductRepository handles persistence for Products. Every write bumps the
// product revision and returns the stored row.
type ProductRepository interface {
	FindAll(ctx context.Context) ([]entity.Product, error)
	FindByID(ctx context.Context, id int64) (entity.Product, error)
	Create(ctx context.Context, p entity.Product) (entity.Product, error)
	Update(ctx context.Context, p entity.Product) (entity.Product, error)
	// Delete removes the product and returns the revision of the deletion.
	Delete(ctx context.Context, id int64) (int64, error)
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
}

// OrderRepository handles persistence for Orders.
type OrderRepository interface {
	// Create stores the order and decrements stock of every ordered product
	// atomically. It returns the products whose stock changed.
	Create(ctx context.Context, o entity.Order) (entity.Order, []entity.Product, error)
	FindByID(ctx context.Context, id string) (entity.Order, error)
	FindRecent(ctx context.Context, limit int) ([]entity.Order, error)
	// UpdateStatus applies the transition check inside the write so that
	// concurrent updates cannot skip it.
	UpdateStatus(ctx context.Context, id string, status entity.OrderStatus) (entity.Order, error)
}
