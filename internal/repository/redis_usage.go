package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const usageKeyTTL = 48 * time.Hour

// RedisUsageRepo keeps daily usage in one hash per account per UTC day.
type RedisUsageRepo struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisUsageRepo(client redis.Cmdable) *RedisUsageRepo {
	return &RedisUsageRepo{
		client: client,
		prefix: "risk",
		now:    time.Now,
	}
}

func (r *RedisUsageRepo) GetDailyUsage(ctx context.Context, accountID string) (int, float64, error) {
	vals, err := r.client.HMGet(ctx, r.makeKey(accountID), "orders", "volume").Result()
	if err != nil && err != redis.Nil {
		return 0, 0, err
	}
	orders, volume := 0, 0.0
	if len(vals) == 2 {
		if s, ok := vals[0].(string); ok {
			orders, _ = strconv.Atoi(s)
		}
		if s, ok := vals[1].(string); ok {
			volume, _ = strconv.ParseFloat(s, 64)
		}
	}
	return orders, volume, nil
}

func (r *RedisUsageRepo) AddDailyUsage(ctx context.Context, accountID string, orders int, amount float64) error {
	key := r.makeKey(accountID)
	pipe := r.client.TxPipeline()
	if orders != 0 {
		pipe.HIncrBy(ctx, key, "orders", int64(orders))
	}
	if amount != 0 {
		pipe.HIncrByFloat(ctx, key, "volume", amount)
	}
	pipe.Expire(ctx, key, usageKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisUsageRepo) makeKey(accountID string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, accountID, r.now().UTC().Format("2006-01-02"))
}
