package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/repository"
)

const orderColumns = "id, customer_name, customer_email, customer_phone, total, status, revision, created_at, updated_at"

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func scanOrder(row rowScanner) (entity.Order, error) {
	var o entity.Order
	err := row.Scan(&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Total, &o.Status, &o.Revision, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *orderRepository) Create(ctx context.Context, o entity.Order) (entity.Order, []entity.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Order{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := scanOrder(tx.QueryRowContext(ctx,
		"INSERT INTO orders (id, customer_name, customer_email, customer_phone, total, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+orderColumns,
		o.ID, o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Total, o.Status, o.CreatedAt,
	))
	if err != nil {
		return entity.Order{}, nil, fmt.Errorf("failed to insert order: %w", err)
	}

	var touched []entity.Product
	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, price, quantity) VALUES ($1, $2, $3, $4, $5)",
			o.ID, item.ProductID, item.Name, item.Price, item.Quantity,
		)
		if err != nil {
			return entity.Order{}, nil, fmt.Errorf("failed to insert order item: %w", err)
		}

		// Decrement stock
		p, err := scanProduct(tx.QueryRowContext(ctx,
			`UPDATE products SET stock = stock - $1, revision = revision + 1, updated_at = NOW()
			WHERE id = $2 AND stock >= $1
			RETURNING `+productColumns,
			item.Quantity, item.ProductID,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Order{}, nil, &entity.ValidationError{
				Message: fmt.Sprintf("insufficient stock for %s", item.Name),
				Errors:  []entity.FieldError{{Field: "items.quantity", Message: "Insufficient stock"}},
			}
		}
		if err != nil {
			return entity.Order{}, nil, fmt.Errorf("failed to update product stock: %w", err)
		}
		touched = append(touched, p)
	}

	if err := tx.Commit(); err != nil {
		return entity.Order{}, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	created.Items = o.Items
	return created, touched, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Order{}, &entity.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return entity.Order{}, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	if o.Items, err = r.findItems(ctx, r.db, id); err != nil {
		return entity.Order{}, err
	}
	return o, nil
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []entity.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	// Fetch items for each order
	for i := range orders {
		if orders[i].Items, err = r.findItems(ctx, r.db, orders[i].ID); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus) (entity.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current entity.OrderStatus
	err = tx.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Order{}, &entity.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return entity.Order{}, fmt.Errorf("failed to lock order %s: %w", id, err)
	}

	if err := current.CanTransition(status); err != nil {
		return entity.Order{}, err
	}

	updated, err := scanOrder(tx.QueryRowContext(ctx,
		"UPDATE orders SET status = $2, revision = revision + 1, updated_at = NOW() WHERE id = $1 RETURNING "+orderColumns,
		id, status,
	))
	if err != nil {
		return entity.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}
	if updated.Items, err = r.findItems(ctx, tx, id); err != nil {
		return entity.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return entity.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *orderRepository) findItems(ctx context.Context, q querier, orderID string) ([]entity.OrderItem, error) {
	rows, err := q.QueryContext(ctx, "SELECT product_id, name, price, quantity FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []entity.OrderItem{}
	for rows.Next() {
		var item entity.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order item rows for %s: %w", strconv.Quote(orderID), err)
	}
	return items, nil
}
