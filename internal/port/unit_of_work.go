package port

import "context"

// UnitOfWork groups stock decrements and the order insert so they become
// visible together or not at all. Rollback after Commit is a no-op.
type UnitOfWork interface {
	Stock() StockLedger
	Orders() OrderRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
