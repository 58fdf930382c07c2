package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

const orderNoPrefix = "O-"

// OrderAssembler turns committed lines into an order aggregate.
type OrderAssembler struct {
	now        func() time.Time
	newOrderNo func() string
}

func NewOrderAssembler() *OrderAssembler {
	return &OrderAssembler{
		now:        func() time.Time { return time.Now().UTC() },
		newOrderNo: newOrderNo,
	}
}

func newOrderNo() string {
	return orderNoPrefix + uuid.New().String()[:12]
}

// Build does no I/O. It fails with domain.ErrEmptyOrder when lines is empty.
func (a *OrderAssembler) Build(lines []domain.OrderLine) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	var total int64
	for _, l := range lines {
		if l.Quantity <= 0 || l.PriceSnapshot < 0 {
			return nil, fmt.Errorf("%w: line for product %d", domain.ErrInvalidInput, l.ProductID)
		}
		if l.PriceSnapshot > 0 && l.Quantity > math.MaxInt64/l.PriceSnapshot {
			return nil, fmt.Errorf("%w: amount overflow for product %d", domain.ErrInvalidInput, l.ProductID)
		}
		amount := l.Amount()
		if total > math.MaxInt64-amount {
			return nil, fmt.Errorf("%w: order total overflow", domain.ErrInvalidInput)
		}
		total += amount
	}

	return &domain.Order{
		OrderNo:     a.newOrderNo(),
		Status:      domain.OrderStatusCreated,
		TotalAmount: total,
		CreatedAt:   a.now(),
		Lines:       append([]domain.OrderLine(nil), lines...),
	}, nil
}

// Persist never stores an order without lines.
func (a *OrderAssembler) Persist(ctx context.Context, repo port.OrderRepository, order *domain.Order) error {
	if order == nil || len(order.Lines) == 0 {
		return domain.ErrEmptyOrder
	}
	return repo.SaveOrder(ctx, order)
}
