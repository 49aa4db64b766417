package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/ranking"
)

// SnapshotCache keeps computed leaderboards in Redis as JSON with a TTL.
type SnapshotCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient connects to Redis and verifies the connection.
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewSnapshotCache wraps an existing client.
func NewSnapshotCache(client *redis.Client, cfg *config.RedisConfig) *SnapshotCache {
	return &SnapshotCache{client: client, prefix: cfg.KeyPrefix, ttl: cfg.SnapshotTTL}
}

// Close closes the Redis connection
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

// Ping checks Redis connectivity.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// snapshotKey returns the Redis key for a period's snapshot
func (c *SnapshotCache) snapshotKey(period domain.Period) string {
	return c.prefix + string(period)
}

// Get loads the cached board for period.
func (c *SnapshotCache) Get(ctx context.Context, period domain.Period) (*ranking.Board, bool, error) {
	data, err := c.client.Get(ctx, c.snapshotKey(period)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting snapshot: %w", err)
	}

	var b ranking.Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &b, true, nil
}

// Set stores a board under its period.
func (c *SnapshotCache) Set(ctx context.Context, b *ranking.Board) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.snapshotKey(b.Period), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("setting snapshot: %w", err)
	}
	return nil
}

// Invalidate removes the snapshot of every period.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	pipe := c.client.Pipeline()
	for _, p := range domain.Periods {
		pipe.Del(ctx, c.snapshotKey(p))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidating snapshots: %w", err)
	}
	return nil
}
