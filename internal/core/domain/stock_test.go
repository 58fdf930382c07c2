package domain

import (
	"testing"
	"time"
)

func TestStockRecord_Decrease(t *testing.T) {
	now := time.Now()
	base := StockRecord{ProductID: 1, Quantity: 5, Version: 3}

	tests := []struct {
		name        string
		amount      int64
		expected    int64
		wantOutcome DecreaseOutcome
		wantQty     int64
		wantVersion int64
	}{
		{"applied", 3, 3, DecreaseApplied, 2, 4},
		{"exact quantity", 5, 3, DecreaseApplied, 0, 4},
		{"insufficient", 6, 3, DecreaseInsufficientStock, 5, 3},
		{"stale version", 1, 2, DecreaseVersionConflict, 5, 3},
		{"stale version and insufficient", 9, 2, DecreaseVersionConflict, 5, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res := base.Decrease(tt.amount, tt.expected, now)
			if res.Outcome != tt.wantOutcome {
				t.Fatalf("expected %s, got %s", tt.wantOutcome, res.Outcome)
			}
			if got.Quantity != tt.wantQty || got.Version != tt.wantVersion {
				t.Errorf("expected qty %d version %d, got %d/%d", tt.wantQty, tt.wantVersion, got.Quantity, got.Version)
			}
			if res.Outcome == DecreaseApplied && res.NewVersion != tt.wantVersion {
				t.Errorf("expected new version %d, got %d", tt.wantVersion, res.NewVersion)
			}
			if res.Outcome == DecreaseInsufficientStock && res.Available != base.Quantity {
				t.Errorf("expected available %d, got %d", base.Quantity, res.Available)
			}
		})
	}
}

func TestStockRecord_RestoreRewindsUntouchedVersion(t *testing.T) {
	now := time.Now()
	start := StockRecord{ProductID: 1, Quantity: 10, Version: 7}

	after, res := start.Decrease(4, 7, now)
	if res.Outcome != DecreaseApplied {
		t.Fatalf("expected applied, got %s", res.Outcome)
	}

	restored := after.Restore(4, res.NewVersion, now)
	if restored.Quantity != 10 || restored.Version != 7 {
		t.Errorf("expected 10/7, got %d/%d", restored.Quantity, restored.Version)
	}
}

func TestStockRecord_RestoreAfterOtherWriterBumpsVersion(t *testing.T) {
	now := time.Now()
	start := StockRecord{ProductID: 1, Quantity: 10, Version: 0}

	mine, res := start.Decrease(4, 0, now)
	theirs, _ := mine.Decrease(1, mine.Version, now)

	restored := theirs.Restore(4, res.NewVersion, now)
	if restored.Quantity != 9 {
		t.Errorf("expected quantity 9, got %d", restored.Quantity)
	}
	if restored.Version != 3 {
		t.Errorf("expected version 3, got %d", restored.Version)
	}
}

func TestStockRecord_Adjust(t *testing.T) {
	now := time.Now()
	s := StockRecord{Quantity: 3, Version: 1}

	up, ok := s.Adjust(5, now)
	if !ok || up.Quantity != 8 || up.Version != 2 {
		t.Errorf("unexpected adjust result: %+v ok=%v", up, ok)
	}

	same, ok := s.Adjust(-4, now)
	if ok {
		t.Error("expected negative adjust to be rejected")
	}
	if same != s {
		t.Errorf("expected record unchanged, got %+v", same)
	}
}
