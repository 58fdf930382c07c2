package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shop-orders/internal/adapter/storage"
	"github.com/rl1809/shop-orders/internal/config"
	"github.com/rl1809/shop-orders/internal/core/service"
	"github.com/rl1809/shop-orders/internal/port"
)

type backend struct {
	products    port.ProductRepository
	orders      port.OrderRepository
	units       port.UnitOfWorkFactory
	stock       service.StockLedgerAdmin
	idempotency port.IdempotencyRepository
	closers     []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMySQL:
		return openMySQLBackend(ctx, cfg, logger)
	case config.BackendRedis:
		return openRedisBackend(ctx, cfg, logger)
	default:
		store := storage.NewMemoryAdapter()
		logger.Info("using in-memory store")
		return &backend{
			products:    store,
			orders:      store,
			units:       storage.NewCompensatingUnits(store, store),
			stock:       store,
			idempotency: store,
		}, nil
	}
}

func openMySQL(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to mysql")
	return db, nil
}

func openRedis(ctx context.Context, addr string, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis", "addr", addr)
	return rdb, nil
}

// MySQL holds everything; decrements and the order insert share one
// transaction. Idempotency keys go to Redis when it is reachable.
func openMySQLBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	db, err := openMySQL(ctx, cfg.MySQLDSN, logger)
	if err != nil {
		return nil, err
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	b := &backend{
		products: mysqlAdapter,
		orders:   mysqlAdapter,
		units:    mysqlAdapter,
		stock:    mysqlAdapter,
		closers:  []func() error{db.Close},
	}

	rdb, err := openRedis(ctx, cfg.RedisAddr, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency keys kept in memory", "error", err)
		b.idempotency = storage.NewMemoryAdapter()
		return b, nil
	}
	b.idempotency = storage.NewRedisAdapter(rdb)
	b.closers = append(b.closers, rdb.Close)
	return b, nil
}

// Stock and idempotency keys live in Redis, products and orders in MySQL.
// A failed order is undone by restoring the Redis decrements.
func openRedisBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	db, err := openMySQL(ctx, cfg.MySQLDSN, logger)
	if err != nil {
		return nil, err
	}
	rdb, err := openRedis(ctx, cfg.RedisAddr, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	return &backend{
		products:    storage.NewRedisStockCatalog(mysqlAdapter, redisAdapter),
		orders:      mysqlAdapter,
		units:       storage.NewCompensatingUnits(redisAdapter, mysqlAdapter),
		stock:       redisAdapter,
		idempotency: redisAdapter,
		closers:     []func() error{db.Close, rdb.Close},
	}, nil
}
