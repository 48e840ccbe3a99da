package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions resolves the Redis connection from the environment.
// REDIS_URL (redis:// or rediss://) wins.  Otherwise REDIS_ADDR, or
// REDIS_HOST with REDIS_PORT, is combined with REDIS_PASSWORD and REDIS_DB.
// ok is false when nothing is configured, which keeps the item cache and
// rate limiter off.
func RedisOptions() (opts *redis.Options, ok bool, err error) {
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err = redis.ParseURL(url)
		if err != nil {
			return nil, false, fmt.Errorf("REDIS_URL: %w", err)
		}
		return opts, true, nil
	}
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		return nil, false, nil
	}
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}, true, nil
}

// NewRedisClient connects and pings Redis.  It returns (nil, nil) when Redis
// is not configured, so callers only have to handle real failures.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	opts, ok, err := RedisOptions()
	if err != nil || !ok {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
