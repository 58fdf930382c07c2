package port

import (
	"context"
	"errors"

	"github.com/rl1809/shop-orders/internal/core/domain"
)

// ErrTxAborted is returned when the store has aborted the surrounding
// transaction on its own (deadlock victim, lock wait timeout). Nothing done
// in that transaction survives.
var ErrTxAborted = errors.New("transaction aborted by store")

type StockLedger interface {
	// GetStock returns nil when the product has no stock record
	GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error)

	// TryDecrease subtracts amount only if the record is still at
	// expectedVersion and holds at least amount. The error is reserved for
	// infrastructure failures; business outcomes are in the result.
	TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error)
}

type StockCompensator interface {
	// RestoreStock undoes a decrement of amount that produced appliedVersion
	RestoreStock(ctx context.Context, productID, amount, appliedVersion int64) error
}

type StockAdmin interface {
	// SetStock creates the record at version 0 or overwrites it with version+1
	SetStock(ctx context.Context, productID, quantity int64) (*domain.StockRecord, error)

	// AdjustStock moves the quantity by delta; domain.ErrStockNotConfigured
	// when absent, domain.ErrInsufficientStock when it would go negative
	AdjustStock(ctx context.Context, productID, delta int64) (*domain.StockRecord, error)
}
