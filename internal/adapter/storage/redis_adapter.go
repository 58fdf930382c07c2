package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shop-orders/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// Decrease reply codes.
const (
	redisApplied int64 = iota
	redisInsufficient
	redisConflict
	redisNotFound
)

// Stock lives in a hash with fields quantity, version and updated_at (unix
// millis). Every mutation is one script so it is atomic on the server.

var decreaseStockScript = redis.NewScript(`
local key = KEYS[1]
local amount = tonumber(ARGV[1])
local expected = tonumber(ARGV[2])

if redis.call('EXISTS', key) == 0 then
	return {3, 0, 0}
end

local qty = tonumber(redis.call('HGET', key, 'quantity'))
local ver = tonumber(redis.call('HGET', key, 'version'))
if ver ~= expected then
	return {2, ver, qty}
end
if qty < amount then
	return {1, ver, qty}
end

qty = qty - amount
ver = ver + 1
redis.call('HSET', key, 'quantity', qty, 'version', ver, 'updated_at', ARGV[3])
return {0, ver, qty}
`)

var restoreStockScript = redis.NewScript(`
local key = KEYS[1]
local amount = tonumber(ARGV[1])
local applied = tonumber(ARGV[2])

if redis.call('EXISTS', key) == 0 then
	return -1
end

local qty = tonumber(redis.call('HGET', key, 'quantity')) + amount
local ver = tonumber(redis.call('HGET', key, 'version'))
if ver == applied then
	ver = applied - 1
else
	ver = ver + 1
end
redis.call('HSET', key, 'quantity', qty, 'version', ver, 'updated_at', ARGV[3])
return 1
`)

var adjustStockScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 0 then
	return {-1, 0, 0}
end

local qty = tonumber(redis.call('HGET', key, 'quantity')) + delta
if qty < 0 then
	return {-2, 0, 0}
end
local ver = tonumber(redis.call('HGET', key, 'version')) + 1
redis.call('HSET', key, 'quantity', qty, 'version', ver, 'updated_at', ARGV[2])
return {0, qty, ver}
`)

var setStockScript = redis.NewScript(`
local key = KEYS[1]
local ver = 0
if redis.call('EXISTS', key) == 1 then
	ver = tonumber(redis.call('HGET', key, 'version')) + 1
end
redis.call('HSET', key, 'quantity', ARGV[1], 'version', ver, 'updated_at', ARGV[2])
return ver
`)

type stockHash struct {
	Quantity  int64 `redis:"quantity"`
	Version   int64 `redis:"version"`
	UpdatedAt int64 `redis:"updated_at"`
}

// RedisAdapter is a StockLedger and idempotency store on Redis.
type RedisAdapter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, now: time.Now}
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}

func (r *RedisAdapter) nowMillis() int64 {
	return r.now().UnixMilli()
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	cmd := r.client.HGetAll(ctx, stockKey(productID))
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	if len(cmd.Val()) == 0 {
		return nil, nil
	}

	var h stockHash
	if err := cmd.Scan(&h); err != nil {
		return nil, fmt.Errorf("scan stock: %w", err)
	}
	return &domain.StockRecord{
		ProductID: productID,
		Quantity:  h.Quantity,
		Version:   h.Version,
		UpdatedAt: time.UnixMilli(h.UpdatedAt).UTC(),
	}, nil
}

func (r *RedisAdapter) TryDecrease(ctx context.Context, productID, amount, expectedVersion int64) (domain.DecreaseResult, error) {
	if amount <= 0 {
		return domain.DecreaseResult{}, fmt.Errorf("decrease stock: amount %d must be positive", amount)
	}

	reply, err := decreaseStockScript.Run(ctx, r.client, []string{stockKey(productID)},
		amount, expectedVersion, r.nowMillis()).Int64Slice()
	if err != nil {
		return domain.DecreaseResult{}, fmt.Errorf("decrease stock: %w", err)
	}
	if len(reply) != 3 {
		return domain.DecreaseResult{}, fmt.Errorf("decrease stock: unexpected reply %v", reply)
	}

	switch reply[0] {
	case redisApplied:
		return domain.DecreaseResult{Outcome: domain.DecreaseApplied, NewVersion: reply[1]}, nil
	case redisInsufficient:
		return domain.DecreaseResult{Outcome: domain.DecreaseInsufficientStock, Available: reply[2]}, nil
	case redisConflict:
		return domain.DecreaseResult{Outcome: domain.DecreaseVersionConflict}, nil
	case redisNotFound:
		return domain.DecreaseResult{Outcome: domain.DecreaseNotFound}, nil
	default:
		return domain.DecreaseResult{}, fmt.Errorf("decrease stock: unknown reply code %d", reply[0])
	}
}

func (r *RedisAdapter) RestoreStock(ctx context.Context, productID, amount, appliedVersion int64) error {
	res, err := restoreStockScript.Run(ctx, r.client, []string{stockKey(productID)},
		amount, appliedVersion, r.nowMillis()).Int64()
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if res < 0 {
		return fmt.Errorf("restore stock: product %d: %w", productID, domain.ErrStockNotConfigured)
	}
	return nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID, quantity int64) (*domain.StockRecord, error) {
	now := r.now()
	ver, err := setStockScript.Run(ctx, r.client, []string{stockKey(productID)},
		quantity, now.UnixMilli()).Int64()
	if err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}
	return &domain.StockRecord{
		ProductID: productID,
		Quantity:  quantity,
		Version:   ver,
		UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

func (r *RedisAdapter) AdjustStock(ctx context.Context, productID, delta int64) (*domain.StockRecord, error) {
	now := r.now()
	reply, err := adjustStockScript.Run(ctx, r.client, []string{stockKey(productID)},
		delta, now.UnixMilli()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("adjust stock: unexpected reply %v", reply)
	}

	switch reply[0] {
	case -1:
		return nil, domain.ErrStockNotConfigured
	case -2:
		return nil, domain.ErrInsufficientStock
	}
	return &domain.StockRecord{
		ProductID: productID,
		Quantity:  reply[1],
		Version:   reply[2],
		UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// DeleteStock drops the product's stock hash. Used when the product itself
// is deleted from the catalog.
func (r *RedisAdapter) DeleteStock(ctx context.Context, productID int64) error {
	if err := r.client.Del(ctx, stockKey(productID)).Err(); err != nil {
		return fmt.Errorf("delete stock: %w", err)
	}
	return nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
