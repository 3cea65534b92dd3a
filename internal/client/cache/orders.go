package cache

import (
	"context"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// OrderAPI is the subset of the REST client the order cache needs.
type OrderAPI interface {
	ListOrders(ctx context.Context) ([]entity.Order, error)
	PlaceOrder(ctx context.Context, cmd entity.PlaceOrder) (entity.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status entity.OrderStatus) (entity.Order, error)
}

type OrdersConfig struct {
	// Fetch overrides the bulk fetch. Customer surfaces use it to load only
	// the orders they track; the default lists every order.
	Fetch func(ctx context.Context) ([]entity.Order, error)
	// OnPlaced runs after the server accepts an order and before the order
	// is merged, so a custom Fetch can already see it.
	OnPlaced func(entity.Order)
	OnChange func()
}

// Orders is the order cache, most recent first.
type Orders struct {
	*Cache[string, entity.Order]
	api      OrderAPI
	onPlaced func(entity.Order)
}

func NewOrders(api OrderAPI, cfg OrdersConfig) *Orders {
	fetch := cfg.Fetch
	if fetch == nil {
		fetch = api.ListOrders
	}
	return &Orders{
		Cache: New(Config[string, entity.Order]{
			Key:      func(o entity.Order) string { return o.ID },
			Revision: func(o entity.Order) int64 { return o.Revision },
			Compare:  func(a, b entity.Order) int { return b.CreatedAt.Compare(a.CreatedAt) },
			Fetch:    fetch,
			OnChange: cfg.OnChange,
		}),
		api:      api,
		onPlaced: cfg.OnPlaced,
	}
}

// ApplyEvent merges an order Change Event. Orders are never deleted.
func (o *Orders) ApplyEvent(ev entity.ChangeEvent) bool {
	switch ev.Kind {
	case entity.OrderCreated, entity.OrderUpdated:
		if ev.Order == nil {
			return false
		}
		o.Upsert(*ev.Order)
		return true
	}
	return false
}

func (o *Orders) Place(ctx context.Context, cmd entity.PlaceOrder) (entity.Order, error) {
	return o.Mutate(ctx, Intent[string, entity.Order]{
		Exec: func(ctx context.Context) (Result[entity.Order], error) {
			placed, err := o.api.PlaceOrder(ctx, cmd)
			if err == nil && o.onPlaced != nil {
				o.onPlaced(placed)
			}
			return Result[entity.Order]{Item: placed}, err
		},
	})
}

func (o *Orders) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus) (entity.Order, error) {
	return o.Mutate(ctx, Intent[string, entity.Order]{
		Target: id,
		Exec: func(ctx context.Context) (Result[entity.Order], error) {
			updated, err := o.api.UpdateOrderStatus(ctx, id, status)
			return Result[entity.Order]{Item: updated}, err
		},
	})
}
