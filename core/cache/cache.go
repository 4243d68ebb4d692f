package cache

import (
	"context"
	"time"

	"rosterhub/core/config"
	"rosterhub/core/constants"
	"rosterhub/core/logger"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
	BlacklistToken(ctx context.Context, token string, ttl time.Duration) error

	// Re-auth notification dedup: the first call after a connection drops to
	// needs_reauth wins; repeats within the TTL report already-notified.
	MarkReauthNotified(ctx context.Context, connectionID string, ttl time.Duration) (first bool, err error)
	ClearReauthNotified(ctx context.Context, connectionID string) error
}

type redisCache struct {
	client *redis.Client
}

func NewCache(cfg config.RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Cache:NewCache:PingError", "error", err)
		return nil, err
	}

	logger.Info("Redis cache initialized", "addr", cfg.Addr)
	return &redisCache{client: client}, nil
}

func (c *redisCache) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, constants.RedisKeyTokenBlacklist+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	return c.client.Set(ctx, constants.RedisKeyTokenBlacklist+token, "1", ttl).Err()
}

func (c *redisCache) MarkReauthNotified(ctx context.Context, connectionID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, constants.RedisKeyReauthNotified+connectionID, "1", ttl).Result()
}

func (c *redisCache) ClearReauthNotified(ctx context.Context, connectionID string) error {
	return c.client.Del(ctx, constants.RedisKeyReauthNotified+connectionID).Err()
}
