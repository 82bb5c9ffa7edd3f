package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/models"
)

// Cached is a read-through redis cache in front of another Provider.
// Only found quotes are cached. Redis failures fall through to the provider.
type Cached struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewCached wraps next with a cache whose entries live for ttl.
func NewCached(next Provider, client *redis.Client, ttl time.Duration, log *zap.Logger) *Cached {
	return &Cached{next: next, client: client, ttl: ttl, log: log}
}

// ConnectRedis establishes a connection to Redis
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("quote:%s", strings.ToUpper(strings.TrimSpace(symbol)))
}

// Lookup implements Provider.
func (c *Cached) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	key := cacheKey(symbol)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var q models.Quote
		if jsonErr := json.Unmarshal(data, &q); jsonErr == nil {
			return &q, nil
		}
		c.log.Warn("Discarding malformed cached quote", zap.String("key", key))
	case err != redis.Nil:
		c.log.Warn("Quote cache read failed", zap.String("key", key), zap.Error(err))
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil || q == nil {
		return q, err
	}

	if data, err := json.Marshal(q); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("Quote cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return q, nil
}
