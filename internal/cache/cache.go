// Package cache stores analysis results in Redis so repeated submissions of
// the same input do not reach the AI providers again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/psychodetective/internal/domain"
)

const keyPrefix = "analysis:"

// Config contains Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ResultCache caches validated analysis results.
type ResultCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg Config, logger *zap.Logger) (*ResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("result cache initialized", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.TTL))

	return &ResultCache{
		redis:  client,
		ttl:    cfg.TTL,
		logger: logger.Named("cache"),
	}, nil
}

// Key derives a cache key from the user, the kind and the payload.
func Key(userID int64, kind domain.Kind, payload domain.Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00", userID, kind)
	h.Write(data)
	return keyPrefix + string(kind) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached result for key. A miss returns (nil, nil).
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.AnalysisResult, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.redis.Del(ctx, key)
		return nil, nil
	}
	return &result, nil
}

// Set stores result under key. Degraded results are never cached.
func (c *ResultCache) Set(ctx context.Context, key string, result *domain.AnalysisResult) error {
	if result == nil || result.Meta.Degraded {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.redis.Close()
}
