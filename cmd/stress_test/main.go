package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shop-orders/internal/adapter/storage"
	"github.com/rl1809/shop-orders/internal/config"
	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Products and orders stay in memory; stock goes to Redis when it is up.
	catalog := storage.NewMemoryAdapter()
	product, err := domain.NewProduct("flash-sale-item", 1999, "")
	if err != nil {
		log.Fatalf("failed to build product: %v", err)
	}
	if err := catalog.CreateProduct(ctx, &product); err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	var ledger storage.CompensatingLedger = catalog
	var setStock func(context.Context, int64, int64) (*domain.StockRecord, error) = catalog.SetStock
	ledgerName := "memory"

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err == nil {
		defer rdb.Close()
		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.DeleteStock(ctx, product.ID); err != nil {
			log.Fatalf("failed to clear stock: %v", err)
		}
		ledger = redisAdapter
		setStock = redisAdapter.SetStock
		ledgerName = "redis " + cfg.RedisAddr
	} else {
		rdb.Close()
		log.Printf("redis unavailable (%v), using in-memory stock", err)
	}

	if _, err := setStock(ctx, product.ID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	orderService := service.NewOrderService(catalog, catalog, storage.NewCompensatingUnits(ledger, catalog),
		service.WithIdempotency(catalog),
		service.WithMaxConflictRetries(cfg.MaxConflictRetries),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	// Counters
	var successCount atomic.Int32
	var insufficientCount atomic.Int32
	var conflictCount atomic.Int32
	var otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := orderService.CreateOrder(ctx, service.CreateOrderRequest{
				RequestID: uuid.New().String(),
				Lines:     []domain.LineRequest{{ProductID: product.ID, Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			case errors.Is(err, domain.ErrConcurrentModification):
				conflictCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Stock Ledger:       %s\n", ledgerName)
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Total Requests:     %d\n", totalRequests)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Insufficient Stock: %d\n", insufficientCount.Load())
	fmt.Printf("Conflict Exhausted: %d\n", conflictCount.Load())
	fmt.Printf("Other Failures:     %d\n", otherCount.Load())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	rec, err := ledger.GetStock(ctx, product.ID)
	if err != nil || rec == nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock:        %d (version %d)\n", rec.Quantity, rec.Version)

	if success > initialStock {
		fmt.Printf("FAIL: oversold, %d orders for %d units\n", success, initialStock)
	} else if rec.Quantity != int64(initialStock)-int64(success) {
		fmt.Printf("FAIL: expected stock %d, got %d\n", int64(initialStock)-int64(success), rec.Quantity)
	} else {
		fmt.Println("PASS: no oversell, final stock matches successful orders")
	}
}
