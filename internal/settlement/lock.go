package settlement

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-checkout/internal/logger"
)

// RedisLock is a fast-path exclusion around settlement of one order code.
// Correctness does not depend on it; the conditional transaction update is
// the real guard. The lock just keeps concurrent confirmations from doing
// redundant gateway calls.
type RedisLock struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedisLock(client *redis.Client, log *logger.Logger) *RedisLock {
	return &RedisLock{
		Client: client,
		Logger: log,
	}
}

func settlementKey(orderCode int64) string {
	return fmt.Sprintf("settlement_lock:%d", orderCode)
}

// lockDuration reads the settlement lock TTL from the environment, defaulting
// to 30 seconds.
func (r *RedisLock) lockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	ttlStr := os.Getenv("SETTLEMENT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Warn("REDIS", "Invalid SETTLEMENT_LOCK_TTL_SECONDS value '"+ttlStr+"', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(ttlSec) * time.Second
}

// LockSettlement takes the per-order-code lock. The owner token identifies
// the holder so only the holder can release it.
func (r *RedisLock) LockSettlement(ctx context.Context, orderCode int64, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, settlementKey(orderCode), owner, r.lockDuration()).Result()
	return ok, err
}

// UnlockSettlement releases the lock if this owner still holds it.
func (r *RedisLock) UnlockSettlement(ctx context.Context, orderCode int64, owner string) error {
	key := settlementKey(orderCode)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
