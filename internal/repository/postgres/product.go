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

const productColumns = "id, name, description, price, image, category, is_active, stock, revision, created_at, updated_at"

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &p.Active, &p.Stock, &p.Revision, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY category, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []entity.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id int64) (entity.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Product{}, productNotFound(id)
	}
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to query product %d: %w", id, err)
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p entity.Product) (entity.Product, error) {
	created, err := scanProduct(r.db.QueryRowContext(ctx,
		"INSERT INTO products (name, description, price, image, category, is_active, stock) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+productColumns,
		p.Name, p.Description, p.Price, p.Image, p.Category, p.Active, p.Stock,
	))
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return created, nil
}

func (r *productRepository) Update(ctx context.Context, p entity.Product) (entity.Product, error) {
	updated, err := scanProduct(r.db.QueryRowContext(ctx,
		`UPDATE products
		SET name = $2, description = $3, price = $4, image = $5, category = $6, is_active = $7, stock = $8,
			revision = revision + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Active, p.Stock,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Product{}, productNotFound(p.ID)
	}
	if err != nil {
		return entity.Product{}, fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) (int64, error) {
	var revision int64
	err := r.db.QueryRowContext(ctx, "DELETE FROM products WHERE id = $1 RETURNING revision + 1", id).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, productNotFound(id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return revision, nil
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product) error {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // already seeded
	}

	for _, p := range products {
		if _, err := r.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.Name, err)
		}
	}
	return nil
}

func productNotFound(id int64) error {
	return &entity.NotFoundError{Entity: "product", ID: strconv.FormatInt(id, 10)}
}
