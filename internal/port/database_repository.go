package port

import (
	"context"

	"github.com/rl1809/shop-orders/internal/core/domain"
)

// ProductCatalog is the read side used while placing orders.
type ProductCatalog interface {
	// FindProduct returns nil when no product has the given id
	FindProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Page struct {
	Offset int
	Limit  int
}

type ProductRepository interface {
	ProductCatalog

	// CreateProduct stores p and assigns its ID
	CreateProduct(ctx context.Context, p *domain.Product) error

	// UpdateProduct overwrites the mutable fields, domain.ErrProductNotFound if absent
	UpdateProduct(ctx context.Context, p domain.Product) error

	// DeleteProduct removes the product and its stock record
	DeleteProduct(ctx context.Context, id int64) error

	// ListProducts returns one page ordered by id descending and the total count
	ListProducts(ctx context.Context, page Page) ([]domain.Product, int64, error)
}

type OrderRepository interface {
	// SaveOrder stores the header and lines as one unit and assigns their IDs
	SaveOrder(ctx context.Context, order *domain.Order) error

	// GetOrder returns nil when no order has the given id
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}
