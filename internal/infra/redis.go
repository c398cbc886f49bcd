// README: Redis client for slot reservation counters; nil when disabled.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"laundry/internal/config"
)

// NewRedis returns nil, nil when Redis is disabled. Callers treat a nil
// client as "no reservation guard".
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
