package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every tracker key so one Redis database can be
// shared with other services.
const DefaultPrefix = "roundscope:"

// Client stores routine tracker snapshots and heatmaps under a key prefix.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient creates a Redis client from a connection URL and checks that the
// server answers within ctx.
func NewClient(ctx context.Context, redisURL, prefix string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	c := NewClientFromPool(redis.NewClient(opts), prefix)
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// NewClientFromPool wraps an existing redis.Client. Tests use it to share one
// connection across stores with different prefixes.
func NewClientFromPool(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

// Prefix returns the namespace prepended to every key.
func (c *Client) Prefix() string { return c.prefix }

// Ping reports whether Redis answers within two seconds.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
