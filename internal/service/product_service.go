package service

import (
	"context"
	"log/slog"

	"github.com/egannguyen/go-food-ordering/internal/broadcast"
	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/repository"
)

// ProductService runs admin writes against the catalog and announces each
// committed write on the products topic.
type ProductService struct {
	productRepo repository.ProductRepository
	events      broadcast.Publisher
}

func NewProductService(productRepo repository.ProductRepository, events broadcast.Publisher) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		events:      events,
	}
}

// GetProducts returns every product, inactive ones included.
func (s *ProductService) GetProducts(ctx context.Context) ([]entity.Product, error) {
	return s.productRepo.FindAll(ctx)
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (entity.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

func (s *ProductService) CreateProduct(ctx context.Context, p entity.Product) (entity.Product, error) {
	if err := p.Validate(); err != nil {
		return entity.Product{}, err
	}

	created, err := s.productRepo.Create(ctx, p)
	if err != nil {
		return entity.Product{}, err
	}

	slog.Info("Service: Product created", "product_id", created.ID, "name", created.Name)
	publish(ctx, s.events, entity.NewProductCreated(created), entity.TopicProducts)
	return created, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, p entity.Product) (entity.Product, error) {
	if err := p.Validate(); err != nil {
		return entity.Product{}, err
	}

	updated, err := s.productRepo.Update(ctx, p)
	if err != nil {
		return entity.Product{}, err
	}

	slog.Info("Service: Product updated", "product_id", updated.ID, "revision", updated.Revision)
	publish(ctx, s.events, entity.NewProductUpdated(updated), entity.TopicProducts)
	return updated, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	revision, err := s.productRepo.Delete(ctx, id)
	if err != nil {
		return err
	}

	slog.Info("Service: Product deleted", "product_id", id)
	publish(ctx, s.events, entity.NewProductDeleted(id, revision), entity.TopicProducts)
	return nil
}

// publish announces a committed write. A failed broadcast never fails the
// write; subscribers catch up on their next bulk fetch.
func publish(ctx context.Context, events broadcast.Publisher, ev entity.ChangeEvent, topics ...string) {
	for _, topic := range topics {
		if err := events.Publish(ctx, topic, ev); err != nil {
			slog.Error("Failed to publish change event", "kind", ev.Kind, "topic", topic, "err", err)
		}
	}
}
