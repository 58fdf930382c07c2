package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

// CompensatingLedger is a stock store without multi-key transactions.
type CompensatingLedger interface {
	port.StockLedger
	port.StockCompensator
}

// CompensatingUnits begins units of work that apply decrements right away
// and undo them on rollback.
type CompensatingUnits struct {
	stock  CompensatingLedger
	orders port.OrderRepository
}

func NewCompensatingUnits(stock CompensatingLedger, orders port.OrderRepository) *CompensatingUnits {
	return &CompensatingUnits{stock: stock, orders: orders}
}

func (f *CompensatingUnits) Begin(ctx context.Context) (port.UnitOfWork, error) {
	return &compensatingUnit{stock: f.stock, orders: f.orders}, nil
}

type decrement struct {
	productID int64
	amount    int64
	version   int64
}

type compensatingUnit struct {
	stock  CompensatingLedger
	orders port.OrderRepository

	mu      sync.Mutex
	journal []decrement
	done    bool
}

func (u *compensatingUnit) Stock() port.StockLedger { return journalingLedger{u} }

func (u *compensatingUnit) Orders() port.OrderRepository { return u.orders }

func (u *compensatingUnit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true
	u.journal = nil
	return nil
}

// Rollback restores journaled decrements newest first. It keeps going after
// a failed restore and reports every failure.
func (u *compensatingUnit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true

	var errs []error
	for i := len(u.journal) - 1; i >= 0; i-- {
		d := u.journal[i]
		if err := u.stock.RestoreStock(ctx, d.productID, d.amount, d.version); err != nil {
			errs = append(errs, fmt.Errorf("restore %d of product %d: %w", d.amount, d.productID, err))
		}
	}
	u.journal = nil
	return errors.Join(errs...)
}

type journalingLedger struct {
	u *compensatingUnit
}

func (l journalingLedger) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	return l.u.stock.GetStock(ctx, productID)
}

func (l journalingLedger) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	res, err := l.u.stock.TryDecrease(ctx, productID, amount, expectedVersion)
	if err != nil || res.Outcome != domain.DecreaseApplied {
		return res, err
	}
	l.u.mu.Lock()
	l.u.journal = append(l.u.journal, decrement{productID: productID, amount: amount, version: res.NewVersion})
	l.u.mu.Unlock()
	return res, nil
}
