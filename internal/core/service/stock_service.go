package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

// StockLedgerAdmin is what the stock endpoints need from a store.
type StockLedgerAdmin interface {
	port.StockLedger
	port.StockAdmin
}

type StockService struct {
	catalog port.ProductCatalog
	stock   StockLedgerAdmin
	logger  *slog.Logger
}

func NewStockService(catalog port.ProductCatalog, stock StockLedgerAdmin, logger *slog.Logger) *StockService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockService{catalog: catalog, stock: stock, logger: logger}
}

func (s *StockService) SetStock(ctx context.Context, productID, quantity int64) (*domain.StockRecord, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidInput)
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	rec, err := s.stock.SetStock(ctx, productID, quantity)
	if err != nil {
		s.logger.Error("failed to set stock", "product_id", productID, "error", err)
		return nil, &domain.PersistenceError{Op: "set stock"}
	}
	s.logger.Info("stock set", "product_id", productID, "quantity", rec.Quantity, "version", rec.Version)
	return rec, nil
}

func (s *StockService) AdjustStock(ctx context.Context, productID, delta int64) (*domain.StockRecord, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", domain.ErrInvalidInput)
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	rec, err := s.stock.AdjustStock(ctx, productID, delta)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, domain.ErrStockNotConfigured):
		return nil, domain.StockNotConfigured(productID)
	case errors.Is(err, domain.ErrInsufficientStock):
		var available int64
		if cur, gerr := s.stock.GetStock(ctx, productID); gerr == nil && cur != nil {
			available = cur.Quantity
		}
		return nil, &domain.InsufficientStockError{ProductID: productID, Requested: -delta, Available: available}
	default:
		s.logger.Error("failed to adjust stock", "product_id", productID, "delta", delta, "error", err)
		return nil, &domain.PersistenceError{Op: "adjust stock"}
	}
}

func (s *StockService) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: product id %d", domain.ErrInvalidInput, productID)
	}
	rec, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		s.logger.Error("stock lookup failed", "product_id", productID, "error", err)
		return nil, &domain.PersistenceError{Op: "read stock"}
	}
	if rec == nil {
		return nil, domain.StockNotConfigured(productID)
	}
	return rec, nil
}

func (s *StockService) requireProduct(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return fmt.Errorf("%w: product id %d", domain.ErrInvalidInput, productID)
	}
	p, err := s.catalog.FindProduct(ctx, productID)
	if err != nil {
		s.logger.Error("product lookup failed", "product_id", productID, "error", err)
		return &domain.PersistenceError{Op: "find product"}
	}
	if p == nil {
		return domain.ProductNotFound(productID)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrProductNotFound)
}
