package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "CREATED"
)

// LineRequest is one requested (product, quantity) pair.
type LineRequest struct {
	ProductID int64
	Quantity  int64
}

// OrderLine freezes the product's name and price at order time.
type OrderLine struct {
	ID            int64
	ProductID     int64
	ProductName   string
	PriceSnapshot int64
	Quantity      int64
}

func (l OrderLine) Amount() int64 {
	return l.PriceSnapshot * l.Quantity
}

type Order struct {
	ID          int64
	OrderNo     string
	Status      OrderStatus
	TotalAmount int64
	CreatedAt   time.Time
	Lines       []OrderLine
}

// Clone returns a copy that shares no line storage with o.
func (o Order) Clone() Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	return o
}
