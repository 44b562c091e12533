package repository

import (
	"context"
	"fmt"
	"time"

	"wayfare/internal/config"

	"github.com/redis/go-redis/v9"
)

// FeedChannel is the pub/sub channel other processes subscribe to for
// notification feed refreshes.
const FeedChannel = "wayfare:feeds:changed"

// RedisCoordinationRepository serializes settlement attempts across processes
// and broadcasts feed changes over pub/sub.
type RedisCoordinationRepository struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCoordinationRepository(client *redis.Client) *RedisCoordinationRepository {
	return &RedisCoordinationRepository{client: client}
}

// AcquireSettlementLock takes the per-booking lock with a TTL so a crashed
// holder cannot wedge the booking forever. Returns false when another
// settlement holds the lock.
func (r *RedisCoordinationRepository) AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("settle_lock:%s", bookingID)
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire settlement lock: %w", err)
	}
	return ok, nil
}

func (r *RedisCoordinationRepository) ReleaseSettlementLock(ctx context.Context, bookingID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("settle_lock:%s", bookingID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release settlement lock: %w", err)
	}
	return nil
}

// PublishFeedChange announces a feed write to observers in other processes.
func (r *RedisCoordinationRepository) PublishFeedChange(ctx context.Context, scope string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Publish(ctx, FeedChannel, scope).Err(); err != nil {
		return fmt.Errorf("failed to publish feed change: %w", err)
	}
	return nil
}

func (r *RedisCoordinationRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	counterKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, counterKey, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
