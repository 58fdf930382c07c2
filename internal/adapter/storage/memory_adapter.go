package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

// stockCell is one product's stock record. Each cell has its own lock so
// decrements on different products never contend.
type stockCell struct {
	mu  sync.Mutex
	rec domain.StockRecord
}

// MemoryAdapter keeps the catalog, stock, orders and idempotency keys in
// process memory.
type MemoryAdapter struct {
	mu            sync.RWMutex
	products      map[int64]domain.Product
	stock         map[int64]*stockCell
	orders        map[int64]domain.Order
	nextProductID int64
	nextOrderID   int64
	nextLineID    int64

	keysMu sync.Mutex
	keys   map[string]time.Time

	now func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products: make(map[int64]domain.Product),
		stock:    make(map[int64]*stockCell),
		orders:   make(map[int64]domain.Order),
		keys:     make(map[string]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryAdapter) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	p.ID = m.nextProductID
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	cur.Name = p.Name
	cur.Price = p.Price
	cur.Description = p.Description
	m.products[p.ID] = cur
	return nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	delete(m.stock, id)
	return nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context, page port.Page) ([]domain.Product, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if page.Offset >= len(all) {
		return []domain.Product{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end], total, nil
}

func (m *MemoryAdapter) cell(productID int64) *stockCell {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stock[productID]
}

func (m *MemoryAdapter) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	c := m.cell(productID)
	if c == nil {
		return nil, nil
	}
	c.mu.Lock()
	rec := c.rec
	c.mu.Unlock()
	return &rec, nil
}

func (m *MemoryAdapter) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	if amount <= 0 {
		return domain.DecreaseResult{}, fmt.Errorf("decrease stock: amount %d must be positive", amount)
	}
	c := m.cell(productID)
	if c == nil {
		return domain.DecreaseResult{Outcome: domain.DecreaseNotFound}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, res := c.rec.Decrease(amount, expectedVersion, m.now())
	c.rec = next
	return res, nil
}

func (m *MemoryAdapter) RestoreStock(ctx context.Context, productID, amount, appliedVersion int64) error {
	c := m.cell(productID)
	if c == nil {
		return fmt.Errorf("restore stock: product %d: %w", productID, domain.ErrStockNotConfigured)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec = c.rec.Restore(amount, appliedVersion, m.now())
	return nil
}

func (m *MemoryAdapter) SetStock(ctx context.Context, productID, quantity int64) (*domain.StockRecord, error) {
	m.mu.Lock()
	c, ok := m.stock[productID]
	if !ok {
		c = &stockCell{rec: domain.StockRecord{ProductID: productID, Version: -1}}
		m.stock[productID] = c
	}
	m.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Quantity = quantity
	c.rec.Version++
	c.rec.UpdatedAt = m.now()
	rec := c.rec
	return &rec, nil
}

func (m *MemoryAdapter) AdjustStock(ctx context.Context, productID, delta int64) (*domain.StockRecord, error) {
	c := m.cell(productID)
	if c == nil {
		return nil, domain.ErrStockNotConfigured
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next, ok := c.rec.Adjust(delta, m.now())
	if !ok {
		return nil, domain.ErrInsufficientStock
	}
	c.rec = next
	return &next, nil
}

func (m *MemoryAdapter) SaveOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOrderID++
	order.ID = m.nextOrderID
	for i := range order.Lines {
		m.nextLineID++
		order.Lines[i].ID = m.nextLineID
	}
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	c := o.Clone()
	return &c, nil
}

func (m *MemoryAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.keysMu.Lock()
	defer m.keysMu.Unlock()
	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.keys[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (m *MemoryAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	m.keysMu.Lock()
	defer m.keysMu.Unlock()
	delete(m.keys, key)
	return nil
}
