package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmptyOrder             = errors.New("order has no lines")
	ErrProductNotFound        = errors.New("product not found")
	ErrStockNotConfigured     = errors.New("stock not configured")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrOrderNotFound          = errors.New("order not found")
	ErrDuplicateRequest       = errors.New("duplicate request")
)

// ProductError ties a sentinel to the product that caused it.
type ProductError struct {
	Err       error
	ProductID int64
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%v: product %d", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

func ProductNotFound(productID int64) error {
	return &ProductError{Err: ErrProductNotFound, ProductID: productID}
}

func StockNotConfigured(productID int64) error {
	return &ProductError{Err: ErrStockNotConfigured, ProductID: productID}
}

func ConcurrentModification(productID int64) error {
	return &ProductError{Err: ErrConcurrentModification, ProductID: productID}
}

type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: product %d requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PersistenceError reports which step failed without exposing the storage
// engine's error. The cause is logged where it happens.
type PersistenceError struct {
	Op string
}

func (e *PersistenceError) Error() string {
	return "persistence failure: " + e.Op
}

func (e *PersistenceError) Unwrap() error { return ErrPersistenceFailure }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
