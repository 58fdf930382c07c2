package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxProductNameLength        = 100
	MaxProductDescriptionLength = 1000
)

type Product struct {
	ID          int64
	Name        string
	Price       int64 // minor currency units
	Description string
	CreatedAt   time.Time
}

// NewProduct is the only way a product comes into existence.
func NewProduct(name string, price int64, description string) (Product, error) {
	p := Product{
		Name:        name,
		Price:       price,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (p Product) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if err := validatePrice(p.Price); err != nil {
		return err
	}
	return validateDescription(p.Description)
}

func (p *Product) ChangeName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	p.Name = name
	return nil
}

func (p *Product) ChangePrice(price int64) error {
	if err := validatePrice(price); err != nil {
		return err
	}
	p.Price = price
	return nil
}

func (p *Product) ChangeDescription(description string) error {
	if err := validateDescription(description); err != nil {
		return err
	}
	p.Description = description
	return nil
}

// ProductPatch holds optional changes; nil fields stay as they are.
type ProductPatch struct {
	Name        *string
	Price       *int64
	Description *string
}

// Apply changes p only if every field in the patch is valid.
func (p *Product) Apply(patch ProductPatch) error {
	next := *p
	if patch.Name != nil {
		if err := next.ChangeName(*patch.Name); err != nil {
			return err
		}
	}
	if patch.Price != nil {
		if err := next.ChangePrice(*patch.Price); err != nil {
			return err
		}
	}
	if patch.Description != nil {
		if err := next.ChangeDescription(*patch.Description); err != nil {
			return err
		}
	}
	*p = next
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalidf("name is required")
	}
	if utf8.RuneCountInString(name) > MaxProductNameLength {
		return invalidf("name longer than %d characters", MaxProductNameLength)
	}
	return nil
}

func validatePrice(price int64) error {
	if price <= 0 {
		return invalidf("price must be positive")
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxProductDescriptionLength {
		return invalidf("description longer than %d characters", MaxProductDescriptionLength)
	}
	return nil
}
