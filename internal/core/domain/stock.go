package domain

import "time"

type StockRecord struct {
	ProductID int64
	Quantity  int64
	Version   int64 // optimistic locking
	UpdatedAt time.Time
}

type DecreaseOutcome int

const (
	DecreaseApplied DecreaseOutcome = iota + 1
	DecreaseInsufficientStock
	DecreaseVersionConflict
	DecreaseNotFound
)

func (o DecreaseOutcome) String() string {
	switch o {
	case DecreaseApplied:
		return "applied"
	case DecreaseInsufficientStock:
		return "insufficient_stock"
	case DecreaseVersionConflict:
		return "version_conflict"
	case DecreaseNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// DecreaseResult is the outcome of a conditional stock decrement.
// NewVersion is set for DecreaseApplied, Available for
// DecreaseInsufficientStock.
type DecreaseResult struct {
	Outcome    DecreaseOutcome
	NewVersion int64
	Available  int64
}

// Decrease applies the compare-and-decrement rule to s. The returned record
// equals s unless the outcome is DecreaseApplied. A stale version wins over
// a short quantity so that the caller re-reads before judging availability.
func (s StockRecord) Decrease(amount, expectedVersion int64, now time.Time) (StockRecord, DecreaseResult) {
	if s.Version != expectedVersion {
		return s, DecreaseResult{Outcome: DecreaseVersionConflict}
	}
	if s.Quantity < amount {
		return s, DecreaseResult{Outcome: DecreaseInsufficientStock, Available: s.Quantity}
	}
	s.Quantity -= amount
	s.Version = expectedVersion + 1
	s.UpdatedAt = now
	return s, DecreaseResult{Outcome: DecreaseApplied, NewVersion: s.Version}
}

// Restore gives back a decrement that was applied at appliedVersion. When
// nothing has touched the record since, the version is rewound too.
func (s StockRecord) Restore(amount, appliedVersion int64, now time.Time) StockRecord {
	s.Quantity += amount
	if s.Version == appliedVersion {
		s.Version = appliedVersion - 1
	} else {
		s.Version++
	}
	s.UpdatedAt = now
	return s
}

// Adjust moves the quantity by delta and bumps the version. ok is false when
// the result would be negative.
func (s StockRecord) Adjust(delta int64, now time.Time) (StockRecord, bool) {
	if s.Quantity+delta < 0 {
		return s, false
	}
	s.Quantity += delta
	s.Version++
	s.UpdatedAt = now
	return s, true
}
