// Package cache provides Redis-based caching of pipeline results.
//
// Re-running the full agent pipeline for a question the service has already
// answered is pure waste: for fixed inputs and fixed provider answers the
// pipeline is deterministic. Results are cached under a hash of the dialect,
// question, and initial SQL with a short TTL. The cache is optional; a nil
// *Client is a no-op on every method.
//
// Cache keys follow the `namespace:id` convention.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Yerdna1/Text-to-SQL/internal/pipeline"
)

// keyResult is the prefix for pipeline-result cache keys.
const keyResult = "pipeline"

// DefaultTTL is how long cached results live unless configured otherwise.
const DefaultTTL = 5 * time.Minute

// Client provides Redis caching operations for pipeline results.
type Client struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// ClientConfig holds configuration for creating a cache client.
type ClientConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password (optional).
	Password string

	// DB is the Redis database number.
	DB int

	// TTL is how long cached results live. Zero means DefaultTTL.
	TTL time.Duration

	// Logger is the structured logger.
	Logger *slog.Logger
}

// New creates a Redis cache client and verifies the connection.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("result cache connected", slog.String("addr", cfg.Addr), slog.Duration("ttl", ttl))
	return &Client{
		client: rdb,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "cache")),
	}, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ResultKey derives the cache key for one pipeline request.
func ResultKey(dialect, question, initialSQL string) string {
	sum := sha256.Sum256([]byte(dialect + "\x00" + question + "\x00" + initialSQL))
	return keyResult + ":" + hex.EncodeToString(sum[:])
}

// GetResult returns the cached pipeline result, or nil on a miss.
func (c *Client) GetResult(ctx context.Context, dialect, question, initialSQL string) (*pipeline.Result, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	payload, err := c.client.Get(ctx, ResultKey(dialect, question, initialSQL)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get: %w", err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		// A corrupt entry behaves like a miss.
		c.logger.Warn("discarding unreadable cache entry", slog.String("error", err.Error()))
		return nil, nil
	}
	return &result, nil
}

// SetResult stores a pipeline result under the request's key.
func (c *Client) SetResult(ctx context.Context, dialect, question, initialSQL string, result *pipeline.Result) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache: marshal result: %w", err)
	}
	if err := c.client.Set(ctx, ResultKey(dialect, question, initialSQL), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}
