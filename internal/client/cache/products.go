package cache

import (
	"cmp"
	"context"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// ProductAPI is the subset of the REST client the product cache needs.
type ProductAPI interface {
	ListProducts(ctx context.Context) ([]entity.Product, error)
	CreateProduct(ctx context.Context, p entity.Product) (entity.Product, error)
	UpdateProduct(ctx context.Context, p entity.Product) (entity.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type ProductsConfig struct {
	// ActiveOnly hides inactive products, as the customer menu does.
	ActiveOnly bool
	OnChange   func()
}

// Products is the catalog cache, ordered by category then insertion.
type Products struct {
	*Cache[int64, entity.Product]
	api ProductAPI
}

func NewProducts(api ProductAPI, cfg ProductsConfig) *Products {
	var filter func(entity.Product) bool
	if cfg.ActiveOnly {
		filter = func(p entity.Product) bool { return p.Active }
	}
	return &Products{
		Cache: New(Config[int64, entity.Product]{
			Key:      func(p entity.Product) int64 { return p.ID },
			Revision: func(p entity.Product) int64 { return p.Revision },
			Compare:  func(a, b entity.Product) int { return cmp.Compare(a.Category, b.Category) },
			Filter:   filter,
			Fetch:    api.ListProducts,
			OnChange: cfg.OnChange,
		}),
		api: api,
	}
}

// ApplyEvent merges a product Change Event. It reports false for events of
// other entity kinds.
func (p *Products) ApplyEvent(ev entity.ChangeEvent) bool {
	switch ev.Kind {
	case entity.ProductCreated, entity.ProductUpdated:
		if ev.Product == nil {
			return false
		}
		p.Upsert(*ev.Product)
	case entity.ProductDeleted:
		p.Remove(ev.ProductID, ev.Revision)
	default:
		return false
	}
	return true
}

func (p *Products) Create(ctx context.Context, product entity.Product) (entity.Product, error) {
	return p.Mutate(ctx, Intent[int64, entity.Product]{
		Exec: func(ctx context.Context) (Result[entity.Product], error) {
			created, err := p.api.CreateProduct(ctx, product)
			return Result[entity.Product]{Item: created}, err
		},
	})
}

func (p *Products) Update(ctx context.Context, product entity.Product) (entity.Product, error) {
	return p.Mutate(ctx, Intent[int64, entity.Product]{
		Target: product.ID,
		Exec: func(ctx context.Context) (Result[entity.Product], error) {
			updated, err := p.api.UpdateProduct(ctx, product)
			return Result[entity.Product]{Item: updated}, err
		},
	})
}

func (p *Products) Delete(ctx context.Context, id int64) error {
	_, err := p.Mutate(ctx, Intent[int64, entity.Product]{
		Target: id,
		Exec: func(ctx context.Context) (Result[entity.Product], error) {
			return Result[entity.Product]{Deleted: true}, p.api.DeleteProduct(ctx, id)
		},
	})
	return err
}

// ByCategory groups the snapshot for menu rendering, keeping snapshot order.
func (p *Products) ByCategory() (categories []string, groups map[string][]entity.Product) {
	groups = make(map[string][]entity.Product)
	for _, product := range p.Snapshot() {
		if _, ok := groups[product.Category]; !ok {
			categories = append(categories, product.Category)
		}
		groups[product.Category] = append(groups[product.Category], product)
	}
	return categories, groups
}
