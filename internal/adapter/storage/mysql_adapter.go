package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/port"
)

// InnoDB error numbers after which the transaction has to be given up.
const (
	mysqlErrLockWaitTimeout uint16 = 1205
	mysqlErrDeadlock        uint16 = 1213
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLAdapter stores products, stock and orders. Adapters handed out by a
// unit of work run every statement inside that unit's transaction.
type MySQLAdapter struct {
	db  *sql.DB
	tx  *sql.Tx
	q   querier
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, q: db, now: func() time.Time { return time.Now().UTC() }}
}

func (m *MySQLAdapter) withTx(tx *sql.Tx) *MySQLAdapter {
	return &MySQLAdapter{db: m.db, tx: tx, q: tx, now: m.now}
}

// Begin opens a READ COMMITTED transaction so that a re-read after a version
// conflict sees the competing commit instead of the transaction snapshot.
func (m *MySQLAdapter) Begin(ctx context.Context) (port.UnitOfWork, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &mysqlUnit{tx: tx, store: m.withTx(tx)}, nil
}

type mysqlUnit struct {
	tx    *sql.Tx
	store *MySQLAdapter
}

func (u *mysqlUnit) Stock() port.StockLedger { return u.store }

func (u *mysqlUnit) Orders() port.OrderRepository { return u.store }

func (u *mysqlUnit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return classifyMySQLError("commit", err)
	}
	return nil
}

func (u *mysqlUnit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func classifyMySQLError(op string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%s: %w (%v)", op, port.ErrTxAborted, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// inTx runs fn in the adapter's transaction, or in a fresh one when the
// adapter is not bound to a unit of work.
func (m *MySQLAdapter) inTx(ctx context.Context, fn func(q querier) error) error {
	if m.tx != nil {
		return fn(m.tx)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classifyMySQLError("commit", err)
	}
	return nil
}

// Products

func (m *MySQLAdapter) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := m.q.QueryRowContext(ctx, `
		SELECT id, name, price, description, created_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	result, err := m.q.ExecContext(ctx, `
		INSERT INTO products (name, price, description, created_at)
		VALUES (?, ?, ?, ?)`,
		p.Name, p.Price, p.Description, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	p.ID = id
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := m.q.ExecContext(ctx, `
		UPDATE products SET name = ?, price = ?, description = ?
		WHERE id = ?`,
		p.Name, p.Price, p.Description, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	// zero rows also means nothing changed
	existing, err := m.FindProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrProductNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id int64) error {
	return m.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM product_stock WHERE product_id = ?`, id); err != nil {
			return fmt.Errorf("delete stock: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, page port.Page) ([]domain.Product, int64, error) {
	var total int64
	if err := m.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := m.q.QueryContext(ctx, `
		SELECT id, name, price, description, created_at
		FROM products ORDER BY id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, page.Limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

// Stock

func (m *MySQLAdapter) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	return getStock(ctx, m.q, productID, false)
}

func getStock(ctx context.Context, q querier, productID int64, forUpdate bool) (*domain.StockRecord, error) {
	query := `
		SELECT product_id, quantity, version, updated_at
		FROM product_stock WHERE product_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var rec domain.StockRecord
	err := q.QueryRowContext(ctx, query, productID).Scan(&rec.ProductID, &rec.Quantity, &rec.Version, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyMySQLError("query stock", err)
	}
	return &rec, nil
}

func (m *MySQLAdapter) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	if amount <= 0 {
		return domain.DecreaseResult{}, fmt.Errorf("decrease stock: amount %d must be positive", amount)
	}

	result, err := m.q.ExecContext(ctx, `
		UPDATE product_stock
		SET quantity = quantity - ?, version = version + 1, updated_at = ?
		WHERE product_id = ? AND version = ? AND quantity >= ?`,
		amount, m.now(), productID, expectedVersion, amount,
	)
	if err != nil {
		return domain.DecreaseResult{}, classifyMySQLError("update stock", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.DecreaseResult{}, fmt.Errorf("update stock: %w", err)
	}
	if rows == 1 {
		return domain.DecreaseResult{Outcome: domain.DecreaseApplied, NewVersion: expectedVersion + 1}, nil
	}

	// Nothing matched; the current row tells which condition failed.
	cur, err := m.GetStock(ctx, productID)
	if err != nil {
		return domain.DecreaseResult{}, err
	}
	if cur == nil {
		return domain.DecreaseResult{Outcome: domain.DecreaseNotFound}, nil
	}
	_, res := cur.Decrease(amount, expectedVersion, cur.UpdatedAt)
	if res.Outcome == domain.DecreaseApplied {
		// the row moved between the update and the read
		return domain.DecreaseResult{Outcome: domain.DecreaseVersionConflict}, nil
	}
	return res, nil
}

func (m *MySQLAdapter) SetStock(ctx context.Context, productID, quantity int64) (*domain.StockRecord, error) {
	var rec *domain.StockRecord
	err := m.inTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO product_stock (product_id, quantity, version, updated_at)
			VALUES (?, ?, 0, ?)
			ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), version = version + 1, updated_at = VALUES(updated_at)`,
			productID, quantity, m.now(),
		)
		if err != nil {
			return classifyMySQLError("upsert stock", err)
		}
		rec, err = getStock(ctx, q, productID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *MySQLAdapter) AdjustStock(ctx context.Context, productID, delta int64) (*domain.StockRecord, error) {
	var rec *domain.StockRecord
	err := m.inTx(ctx, func(q querier) error {
		cur, err := getStock(ctx, q, productID, true)
		if err != nil {
			return err
		}
		if cur == nil {
			return domain.ErrStockNotConfigured
		}
		next, ok := cur.Adjust(delta, m.now())
		if !ok {
			return domain.ErrInsufficientStock
		}
		if _, err := q.ExecContext(ctx, `
			UPDATE product_stock SET quantity = ?, version = ?, updated_at = ?
			WHERE product_id = ?`,
			next.Quantity, next.Version, next.UpdatedAt, productID,
		); err != nil {
			return classifyMySQLError("adjust stock", err)
		}
		rec = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Orders

func (m *MySQLAdapter) SaveOrder(ctx context.Context, order *domain.Order) error {
	return m.inTx(ctx, func(q querier) error {
		result, err := q.ExecContext(ctx, `
			INSERT INTO orders (order_no, status, total_amount, created_at)
			VALUES (?, ?, ?, ?)`,
			order.OrderNo, order.Status, order.TotalAmount, order.CreatedAt,
		)
		if err != nil {
			return classifyMySQLError("insert order", err)
		}
		orderID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("order id: %w", err)
		}

		for i := range order.Lines {
			line := &order.Lines[i]
			result, err := q.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, price_snapshot, quantity)
				VALUES (?, ?, ?, ?, ?)`,
				orderID, line.ProductID, line.ProductName, line.PriceSnapshot, line.Quantity,
			)
			if err != nil {
				return classifyMySQLError("insert order item", err)
			}
			if line.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("order item id: %w", err)
			}
		}
		order.ID = orderID
		return nil
	})
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := m.q.QueryRowContext(ctx, `
		SELECT id, order_no, status, total_amount, created_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.OrderNo, &status, &o.TotalAmount, &o.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	rows, err := m.q.QueryContext(ctx, `
		SELECT id, product_id, product_name, price_snapshot, quantity
		FROM order_items WHERE order_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.PriceSnapshot, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return &o, nil
}
