package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewProduct_Valid(t *testing.T) {
	p, err := NewProduct("Keyboard", 45000, "mechanical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}
}

func TestNewProduct_Invalid(t *testing.T) {
	cases := map[string]struct {
		name  string
		price int64
		desc  string
	}{
		"blank name":       {"  ", 100, ""},
		"long name":        {strings.Repeat("a", MaxProductNameLength+1), 100, ""},
		"zero price":       {"A", 0, ""},
		"negative price":   {"A", -5, ""},
		"long description": {"A", 100, strings.Repeat("d", MaxProductDescriptionLength+1)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewProduct(c.name, c.price, c.desc)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestProduct_ApplyIsAllOrNothing(t *testing.T) {
	p, _ := NewProduct("Mouse", 1000, "")
	name := "Mouse Pro"
	price := int64(-1)

	err := p.Apply(ProductPatch{Name: &name, Price: &price})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if p.Name != "Mouse" || p.Price != 1000 {
		t.Errorf("expected product untouched, got %+v", p)
	}

	price = 1200
	if err := p.Apply(ProductPatch{Name: &name, Price: &price}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Mouse Pro" || p.Price != 1200 {
		t.Errorf("patch not applied: %+v", p)
	}
}

func TestErrors_Unwrap(t *testing.T) {
	err := error(&InsufficientStockError{ProductID: 2, Requested: 3, Available: 1})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("expected InsufficientStockError to match ErrInsufficientStock")
	}

	var pe *ProductError
	if !errors.As(ConcurrentModification(9), &pe) || pe.ProductID != 9 {
		t.Error("expected ProductError for product 9")
	}
	if !errors.Is(StockNotConfigured(1), ErrStockNotConfigured) {
		t.Error("expected ErrStockNotConfigured")
	}
	if !errors.Is(&PersistenceError{Op: "save order"}, ErrPersistenceFailure) {
		t.Error("expected ErrPersistenceFailure")
	}
}
