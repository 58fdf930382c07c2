package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-orders/internal/core/domain"
)

type failingRestore struct {
	*MemoryAdapter
	calls int
}

func (f *failingRestore) RestoreStock(ctx context.Context, productID, amount, appliedVersion int64) error {
	f.calls++
	return errors.New("restore unavailable")
}

func TestCompensatingUnit_RollbackRestoresInReverse(t *testing.T) {
	ctx := context.Background()
	m, id := seedMemory(t, 10)
	units := NewCompensatingUnits(m, m)

	uow, err := units.Begin(ctx)
	require.NoError(t, err)

	res, err := uow.Stock().TryDecrease(ctx, id, 3, 0)
	require.NoError(t, err)
	require.Equal(t, domain.DecreaseApplied, res.Outcome)
	res, err = uow.Stock().TryDecrease(ctx, id, 2, res.NewVersion)
	require.NoError(t, err)
	require.Equal(t, domain.DecreaseApplied, res.Outcome)

	rec, _ := m.GetStock(ctx, id)
	assert.Equal(t, int64(5), rec.Quantity, "decrements are visible before commit")

	require.NoError(t, uow.Rollback(ctx))
	rec, _ = m.GetStock(ctx, id)
	assert.Equal(t, int64(10), rec.Quantity)
	assert.Equal(t, int64(0), rec.Version)

	require.NoError(t, uow.Rollback(ctx), "second rollback is a no-op")
	rec, _ = m.GetStock(ctx, id)
	assert.Equal(t, int64(10), rec.Quantity)
}

func TestCompensatingUnit_FailedDecreaseNotJournaled(t *testing.T) {
	ctx := context.Background()
	m, id := seedMemory(t, 1)
	uow, _ := NewCompensatingUnits(m, m).Begin(ctx)

	res, err := uow.Stock().TryDecrease(ctx, id, 5, 0)
	require.NoError(t, err)
	require.Equal(t, domain.DecreaseInsufficientStock, res.Outcome)

	require.NoError(t, uow.Rollback(ctx))
	rec, _ := m.GetStock(ctx, id)
	assert.Equal(t, int64(1), rec.Quantity)
	assert.Equal(t, int64(0), rec.Version)
}

func TestCompensatingUnit_CommitKeepsChanges(t *testing.T) {
	ctx := context.Background()
	m, id := seedMemory(t, 10)
	uow, _ := NewCompensatingUnits(m, m).Begin(ctx)

	_, err := uow.Stock().TryDecrease(ctx, id, 4, 0)
	require.NoError(t, err)
	require.NoError(t, uow.Orders().SaveOrder(ctx, &domain.Order{
		OrderNo: "O-1",
		Lines:   []domain.OrderLine{{ProductID: id, PriceSnapshot: 100, Quantity: 4}},
	}))
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Rollback(ctx), "rollback after commit is a no-op")

	rec, _ := m.GetStock(ctx, id)
	assert.Equal(t, int64(6), rec.Quantity)
	assert.Error(t, uow.Commit(ctx))
}

func TestCompensatingUnit_RollbackReportsEveryFailure(t *testing.T) {
	ctx := context.Background()
	m, id := seedMemory(t, 10)
	ledger := &failingRestore{MemoryAdapter: m}
	uow, _ := NewCompensatingUnits(ledger, m).Begin(ctx)

	res, _ := uow.Stock().TryDecrease(ctx, id, 1, 0)
	_, _ = uow.Stock().TryDecrease(ctx, id, 1, res.NewVersion)

	err := uow.Rollback(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, ledger.calls, "rollback keeps going after a failure")
}
