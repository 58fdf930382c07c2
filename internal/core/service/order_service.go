package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

const (
	DefaultMaxConflictRetries = 3
	idempotencyKeyPrefix      = "order:"
)

type CreateOrderRequest struct {
	RequestID string
	Lines     []domain.LineRequest
}

type OrderService struct {
	catalog     port.ProductCatalog
	orders      port.OrderRepository
	units       port.UnitOfWorkFactory
	idempotency port.IdempotencyRepository
	assembler   *OrderAssembler
	maxRetries  int
	logger      *slog.Logger
}

type Option func(*OrderService)

// WithMaxConflictRetries bounds how often a version conflict on one line is
// retried with a fresh read.
func WithMaxConflictRetries(n int) Option {
	return func(s *OrderService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithIdempotency(repo port.IdempotencyRepository) Option {
	return func(s *OrderService) { s.idempotency = repo }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *OrderService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAssembler(a *OrderAssembler) Option {
	return func(s *OrderService) {
		if a != nil {
			s.assembler = a
		}
	}
}

func NewOrderService(catalog port.ProductCatalog, orders port.OrderRepository, units port.UnitOfWorkFactory, opts ...Option) *OrderService {
	s := &OrderService{
		catalog:    catalog,
		orders:     orders,
		units:      units,
		assembler:  NewOrderAssembler(),
		maxRetries: DefaultMaxConflictRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if len(req.Lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	for _, line := range req.Lines {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d quantity %d", domain.ErrInvalidInput, line.ProductID, line.Quantity)
		}
	}

	if req.RequestID != "" && s.idempotency != nil {
		key := idempotencyKeyPrefix + req.RequestID
		ok, err := s.idempotency.SetIdempotency(ctx, key)
		if err != nil {
			s.logger.Error("idempotency check failed", "request_id", req.RequestID, "error", err)
			return nil, &domain.PersistenceError{Op: "idempotency check"}
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}

		order, err := s.placeOrder(ctx, req.Lines)
		if err != nil {
			if relErr := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				s.logger.Error("failed to release idempotency key", "request_id", req.RequestID, "error", relErr)
			}
			return nil, err
		}
		return order, nil
	}

	return s.placeOrder(ctx, req.Lines)
}

// placeOrder runs every decrement and the order insert in one unit of work.
// Any error leaves the unit rolled back.
func (s *OrderService) placeOrder(ctx context.Context, lines []domain.LineRequest) (*domain.Order, error) {
	uow, err := s.units.Begin(ctx)
	if err != nil {
		s.logger.Error("failed to begin unit of work", "error", err)
		return nil, &domain.PersistenceError{Op: "begin unit of work"}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			s.logger.Error("CRITICAL: rollback failed, stock may be out of sync", "error", rbErr)
		}
	}()

	committedLines := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		product, err := s.catalog.FindProduct(ctx, line.ProductID)
		if err != nil {
			s.logger.Error("product lookup failed", "product_id", line.ProductID, "error", err)
			return nil, &domain.PersistenceError{Op: "find product"}
		}
		if product == nil {
			return nil, domain.ProductNotFound(line.ProductID)
		}

		if err := s.decrease(ctx, uow.Stock(), line); err != nil {
			return nil, err
		}

		committedLines = append(committedLines, domain.OrderLine{
			ProductID:     product.ID,
			ProductName:   product.Name,
			PriceSnapshot: product.Price,
			Quantity:      line.Quantity,
		})
	}

	order, err := s.assembler.Build(committedLines)
	if err != nil {
		return nil, err
	}

	if err := s.assembler.Persist(ctx, uow.Orders(), order); err != nil {
		s.logger.Error("failed to save order", "order_no", order.OrderNo, "error", err)
		return nil, &domain.PersistenceError{Op: "save order"}
	}
	if err := uow.Commit(ctx); err != nil {
		s.logger.Error("failed to commit order", "order_no", order.OrderNo, "error", err)
		return nil, &domain.PersistenceError{Op: "commit order"}
	}
	committed = true

	s.logger.Info("order created", "order_no", order.OrderNo, "lines", len(order.Lines), "total", order.TotalAmount)
	return order, nil
}

// decrease runs the read, compare-and-decrement, retry-on-conflict loop for
// one line.
func (s *OrderService) decrease(ctx context.Context, ledger port.StockLedger, line domain.LineRequest) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		stock, err := ledger.GetStock(ctx, line.ProductID)
		if err != nil {
			return s.storeError("read stock", line.ProductID, err)
		}
		if stock == nil {
			return domain.StockNotConfigured(line.ProductID)
		}

		res, err := ledger.TryDecrease(ctx, line.ProductID, line.Quantity, stock.Version)
		if err != nil {
			return s.storeError("decrease stock", line.ProductID, err)
		}

		switch res.Outcome {
		case domain.DecreaseApplied:
			return nil
		case domain.DecreaseInsufficientStock:
			return &domain.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: res.Available,
			}
		case domain.DecreaseNotFound:
			return domain.StockNotConfigured(line.ProductID)
		case domain.DecreaseVersionConflict:
			s.logger.Debug("stock version conflict, retrying",
				"product_id", line.ProductID, "expected_version", stock.Version, "attempt", attempt+1)
		default:
			return s.storeError("decrease stock", line.ProductID, fmt.Errorf("unexpected outcome %s", res.Outcome))
		}
	}

	s.logger.Warn("retry budget exhausted", "product_id", line.ProductID, "retries", s.maxRetries)
	return domain.ConcurrentModification(line.ProductID)
}

func (s *OrderService) storeError(op string, productID int64, err error) error {
	if errors.Is(err, port.ErrTxAborted) {
		s.logger.Warn("store aborted the transaction", "product_id", productID, "error", err)
		return domain.ConcurrentModification(productID)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("stock store failure", "op", op, "product_id", productID, "error", err)
	return &domain.PersistenceError{Op: op}
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: order id %d", domain.ErrInvalidInput, id)
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		s.logger.Error("order lookup failed", "order_id", id, "error", err)
		return nil, &domain.PersistenceError{Op: "get order"}
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return order, nil
}
