package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

// mockStore is an in-memory catalog, ledger, order repository and
// idempotency set. Units of work journal decrements and undo them on
// rollback.
type mockStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	stock    map[int64]domain.StockRecord
	orders   map[int64]domain.Order
	keys     map[string]bool
	nextID   int64

	saveErr   error
	commitErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		products: make(map[int64]domain.Product),
		stock:    make(map[int64]domain.StockRecord),
		orders:   make(map[int64]domain.Order),
		keys:     make(map[string]bool),
	}
}

func (m *mockStore) addProduct(id int64, name string, price, qty int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = domain.Product{ID: id, Name: name, Price: price, CreatedAt: time.Now().UTC()}
	m.stock[id] = domain.StockRecord{ProductID: id, Quantity: qty}
}

func (m *mockStore) stockOf(id int64) domain.StockRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

func (m *mockStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockStore) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = *p
	return nil
}

func (m *mockStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockStore) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	delete(m.stock, id)
	return nil
}

func (m *mockStore) ListProducts(ctx context.Context, page port.Page) ([]domain.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := range m.products {
		ids = append(ids, id)
	}
	// id descending
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] > ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	var out []domain.Product
	for i := page.Offset; i < len(ids) && len(out) < page.Limit; i++ {
		out = append(out, m.products[ids[i]])
	}
	return out, int64(len(ids)), nil
}

func (m *mockStore) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[productID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockStore) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[productID]
	if !ok {
		return domain.DecreaseResult{Outcome: domain.DecreaseNotFound}, nil
	}
	next, res := rec.Decrease(amount, expectedVersion, time.Now())
	m.stock[productID] = next
	return res, nil
}

func (m *mockStore) RestoreStock(ctx context.Context, productID, amount, appliedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[productID]
	if !ok {
		return errors.New("stock vanished")
	}
	m.stock[productID] = rec.Restore(amount, appliedVersion, time.Now())
	return nil
}

func (m *mockStore) SetStock(ctx context.Context, productID, quantity int64) (*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[productID]
	if ok {
		rec.Version++
	}
	rec.ProductID = productID
	rec.Quantity = quantity
	m.stock[productID] = rec
	return &rec, nil
}

func (m *mockStore) AdjustStock(ctx context.Context, productID, delta int64) (*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[productID]
	if !ok {
		return nil, domain.ErrStockNotConfigured
	}
	next, ok := rec.Adjust(delta, time.Now())
	if !ok {
		return nil, domain.ErrInsufficientStock
	}
	m.stock[productID] = next
	return &next, nil
}

func (m *mockStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.nextID++
	order.ID = m.nextID
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *mockStore) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	c := o.Clone()
	return &c, nil
}

func (m *mockStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockStore) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *mockStore) Begin(ctx context.Context) (port.UnitOfWork, error) {
	return &mockUnit{store: m, ledger: m}, nil
}

type applied struct {
	productID, amount, version int64
}

type mockUnit struct {
	store  *mockStore
	ledger port.StockLedger
	mu     sync.Mutex
	log    []applied
	done   bool
}

func (u *mockUnit) Stock() port.StockLedger { return (*mockUnitLedger)(u) }

func (u *mockUnit) Orders() port.OrderRepository { return u.store }

func (u *mockUnit) Commit(ctx context.Context) error {
	if err := u.store.commitErr; err != nil {
		return err
	}
	u.mu.Lock()
	u.done = true
	u.mu.Unlock()
	return nil
}

func (u *mockUnit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	for i := len(u.log) - 1; i >= 0; i-- {
		a := u.log[i]
		if err := u.store.RestoreStock(ctx, a.productID, a.amount, a.version); err != nil {
			return err
		}
	}
	return nil
}

type mockUnitLedger mockUnit

func (l *mockUnitLedger) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	return l.ledger.GetStock(ctx, productID)
}

func (l *mockUnitLedger) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	res, err := l.ledger.TryDecrease(ctx, productID, amount, expectedVersion)
	if err == nil && res.Outcome == domain.DecreaseApplied {
		l.mu.Lock()
		l.log = append(l.log, applied{productID, amount, res.NewVersion})
		l.mu.Unlock()
	}
	return res, err
}

// scriptedLedger answers TryDecrease from a fixed list of outcomes and
// counts calls.
type scriptedLedger struct {
	mu       sync.Mutex
	outcomes []domain.DecreaseResult
	err      error
	calls    int
	reads    int
}

func (s *scriptedLedger) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return &domain.StockRecord{ProductID: productID, Quantity: 100, Version: int64(s.reads)}, nil
}

func (s *scriptedLedger) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.DecreaseResult{}, s.err
	}
	if len(s.outcomes) == 0 {
		return domain.DecreaseResult{Outcome: domain.DecreaseVersionConflict}, nil
	}
	res := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return res, nil
}

type scriptedUnits struct {
	store  *mockStore
	ledger *scriptedLedger
}

func (f scriptedUnits) Begin(ctx context.Context) (port.UnitOfWork, error) {
	return &mockUnit{store: f.store, ledger: f.ledger}, nil
}
