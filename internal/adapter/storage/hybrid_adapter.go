package storage

import (
	"context"
	"fmt"
)

// RedisStockCatalog is the catalog for deployments that keep stock in Redis
// and products in MySQL. Deleting a product also drops its Redis stock.
type RedisStockCatalog struct {
	*MySQLAdapter
	stock *RedisAdapter
}

func NewRedisStockCatalog(products *MySQLAdapter, stock *RedisAdapter) *RedisStockCatalog {
	return &RedisStockCatalog{MySQLAdapter: products, stock: stock}
}

func (c *RedisStockCatalog) DeleteProduct(ctx context.Context, id int64) error {
	if err := c.MySQLAdapter.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if err := c.stock.DeleteStock(ctx, id); err != nil {
		return fmt.Errorf("product %d deleted but stock remains: %w", id, err)
	}
	return nil
}
