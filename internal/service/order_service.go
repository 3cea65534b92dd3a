package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-food-ordering/internal/broadcast"
	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/messaging"
	"github.com/egannguyen/go-food-ordering/internal/repository"
)

// Integration topics for downstream consumers (kitchen display, mailers).
const (
	TopicOrdersPlaced        = "orders.placed"
	TopicOrdersStatusChanged = "orders.status_changed"
)

// OrderPlaced is emitted to downstream consumers when checkout succeeds.
type OrderPlaced struct {
	OrderID  string             `json:"order_id"`
	Items    []entity.OrderItem `json:"items"`
	Total    string             `json:"total"`
	PlacedAt time.Time          `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderStatusChanged is emitted to downstream consumers on every transition.
type OrderStatusChanged struct {
	OrderID   string             `json:"order_id"`
	Status    entity.OrderStatus `json:"status"`
	ChangedAt time.Time          `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// OrderService orchestrates order-related business logic.
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	events      broadcast.Publisher
	publisher   messaging.Publisher
	now         func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	events broadcast.Publisher,
	publisher messaging.Publisher,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		events:      events,
		publisher:   publisher,
		now:         time.Now,
	}
}

// GetRecentOrders returns the latest orders, newest first.
func (s *OrderService) GetRecentOrders(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orderRepo.FindRecent(ctx, limit)
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (entity.Order, error) {
	return s.orderRepo.FindByID(ctx, id)
}

// PlaceOrder snapshots each requested product, computes the total and stores
// the order as pending. Prices sent by the client are never used.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd entity.PlaceOrder) (entity.Order, error) {
	if err := cmd.Validate(); err != nil {
		return entity.Order{}, err
	}
	if cmd.OrderID == "" {
		cmd.OrderID = uuid.New().String()
	}

	slog.Info("Service: Placing order", "order_id", cmd.OrderID, "items", len(cmd.Lines))

	items, err := s.snapshotItems(ctx, cmd.Lines)
	if err != nil {
		return entity.Order{}, err
	}

	order := entity.Order{
		ID:        cmd.OrderID,
		Customer:  cmd.Customer,
		Items:     items,
		Total:     entity.ComputeTotal(items),
		Status:    entity.StatusPending,
		CreatedAt: s.now(),
	}

	created, touched, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		return entity.Order{}, err
	}

	publish(ctx, s.events, entity.NewOrderCreated(created), entity.TopicAdmin, entity.OrderTopic(created.ID))
	for _, p := range touched {
		publish(ctx, s.events, entity.NewProductUpdated(p), entity.TopicProducts)
	}

	placed := OrderPlaced{
		OrderID:  created.ID,
		Items:    created.Items,
		Total:    created.Total.StringFixed(2),
		PlacedAt: created.CreatedAt,
	}
	if err := s.publisher.PublishEvent(ctx, TopicOrdersPlaced, created.ID, placed); err != nil {
		slog.Error("Failed to publish OrderPlaced", "order_id", created.ID, "err", err)
	}

	slog.Info("✅ Order placed", "order_id", created.ID, "total", created.Total.StringFixed(2))
	return created, nil
}

// UpdateOrderStatus moves an order forward in its lifecycle.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, cmd entity.UpdateOrderStatus) (entity.Order, error) {
	if !cmd.Status.Valid() {
		return entity.Order{}, &entity.ValidationError{
			Message: fmt.Sprintf("invalid status %q", cmd.Status),
			Errors:  []entity.FieldError{{Field: "status", Message: "Invalid status"}},
		}
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, cmd.OrderID, cmd.Status)
	if err != nil {
		return entity.Order{}, err
	}

	slog.Info("Service: Order status changed", "order_id", updated.ID, "status", updated.Status)
	publish(ctx, s.events, entity.NewOrderUpdated(updated), entity.TopicAdmin, entity.OrderTopic(updated.ID))

	changed := OrderStatusChanged{OrderID: updated.ID, Status: updated.Status, ChangedAt: updated.UpdatedAt}
	if err := s.publisher.PublishEvent(ctx, TopicOrdersStatusChanged, updated.ID, changed); err != nil {
		slog.Error("Failed to publish OrderStatusChanged", "order_id", updated.ID, "err", err)
	}
	return updated, nil
}

// snapshotItems merges duplicate lines and copies name and price from the
// catalog. Inactive or unknown products reject the order.
func (s *OrderService) snapshotItems(ctx context.Context, lines []entity.OrderLine) ([]entity.OrderItem, error) {
	quantities := make(map[int64]int, len(lines))
	var ids []int64
	for _, line := range lines {
		if _, seen := quantities[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		quantities[line.ProductID] += line.Quantity
	}

	items := make([]entity.OrderItem, 0, len(ids))
	for _, id := range ids {
		p, err := s.productRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, &entity.ValidationError{
				Message: fmt.Sprintf("%s is not available", p.Name),
				Errors:  []entity.FieldError{{Field: "items.id", Message: "Product is not available"}},
			}
		}
		items = append(items, entity.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  quantities[id],
		})
	}
	return items, nil
}
