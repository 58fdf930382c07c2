package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type ProductService struct {
	products port.ProductRepository
	logger   *slog.Logger
}

func NewProductService(products port.ProductRepository, logger *slog.Logger) *ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductService{products: products, logger: logger}
}

type CreateProductRequest struct {
	Name        string
	Price       int64
	Description string
}

type ProductPage struct {
	Items []domain.Product
	Page  int
	Size  int
	Total int64
}

func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (*domain.Product, error) {
	p, err := domain.NewProduct(req.Name, req.Price, req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.products.CreateProduct(ctx, &p); err != nil {
		s.logger.Error("failed to create product", "name", req.Name, "error", err)
		return nil, &domain.PersistenceError{Op: "create product"}
	}
	s.logger.Info("product created", "product_id", p.ID)
	return &p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product id %d", domain.ErrInvalidInput, id)
	}
	p, err := s.products.FindProduct(ctx, id)
	if err != nil {
		s.logger.Error("product lookup failed", "product_id", id, "error", err)
		return nil, &domain.PersistenceError{Op: "find product"}
	}
	if p == nil {
		return nil, domain.ProductNotFound(id)
	}
	return p, nil
}

// UpdateProduct applies patch atomically; nothing is written if any field
// is invalid.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(patch); err != nil {
		return nil, err
	}
	if err := s.products.UpdateProduct(ctx, *p); err != nil {
		return nil, s.writeError("update product", id, err)
	}
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return s.writeError("delete product", id, err)
	}
	s.logger.Info("product deleted", "product_id", id)
	return nil
}

// ListProducts pages are 1-based. A zero size means DefaultPageSize and
// anything above MaxPageSize is clamped.
func (s *ProductService) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	items, total, err := s.products.ListProducts(ctx, port.Page{Offset: (page - 1) * size, Limit: size})
	if err != nil {
		s.logger.Error("failed to list products", "page", page, "size", size, "error", err)
		return nil, &domain.PersistenceError{Op: "list products"}
	}
	return &ProductPage{Items: items, Page: page, Size: size, Total: total}, nil
}

func (s *ProductService) writeError(op string, id int64, err error) error {
	if isNotFound(err) {
		return domain.ProductNotFound(id)
	}
	s.logger.Error("product store failure", "op", op, "product_id", id, "error", err)
	return &domain.PersistenceError{Op: op}
}
