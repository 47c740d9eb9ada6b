package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appbilling "github.com/cflow/backend/internal/application/billing"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

// RedisCirculationCache implements CirculationCache using Redis. Suitable
// for distributed deployments where multiple worker instances share the
// per-building circulation results.
type RedisCirculationCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCirculationCache creates a Redis-backed circulation cache
func NewRedisCirculationCache(cfg RedisConfig, ttl time.Duration) (*RedisCirculationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCirculationCache{
		client:    client,
		keyPrefix: "billing:circulation:",
		ttl:       ttl,
	}, nil
}

// NewRedisCirculationCacheWithClient creates a cache with an existing Redis
// client, for testing or when sharing a client across components
func NewRedisCirculationCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCirculationCache {
	return &RedisCirculationCache{
		client:    client,
		keyPrefix: "billing:circulation:",
		ttl:       ttl,
	}
}

func (c *RedisCirculationCache) key(buildingID uuid.UUID, month time.Time) string {
	return fmt.Sprintf("%s%s:%s", c.keyPrefix, buildingID, month.Format("2006-01"))
}

// Get returns the cached cost for a building and month
func (c *RedisCirculationCache) Get(ctx context.Context, buildingID uuid.UUID, month time.Time) (valueobject.Money, bool, error) {
	data, err := c.client.Get(ctx, c.key(buildingID, month)).Bytes()
	if err == redis.Nil {
		return valueobject.Money{}, false, nil
	}
	if err != nil {
		return valueobject.Money{}, false, fmt.Errorf("failed to read circulation cache: %w", err)
	}

	var cost valueobject.Money
	if err := json.Unmarshal(data, &cost); err != nil {
		return valueobject.Money{}, false, fmt.Errorf("failed to decode cached circulation cost: %w", err)
	}
	return cost, true, nil
}

// Set stores the cost for a building and month
func (c *RedisCirculationCache) Set(ctx context.Context, buildingID uuid.UUID, month time.Time, cost valueobject.Money) error {
	data, err := json.Marshal(cost)
	if err != nil {
		return fmt.Errorf("failed to encode circulation cost: %w", err)
	}
	if err := c.client.Set(ctx, c.key(buildingID, month), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write circulation cache: %w", err)
	}
	return nil
}

// ClearBuilding drops every cached month of one building
func (c *RedisCirculationCache) ClearBuilding(ctx context.Context, buildingID uuid.UUID) error {
	return c.deleteByPattern(ctx, fmt.Sprintf("%s%s:*", c.keyPrefix, buildingID))
}

// Clear drops all cached circulation entries
func (c *RedisCirculationCache) Clear(ctx context.Context) error {
	return c.deleteByPattern(ctx, c.keyPrefix+"*")
}

func (c *RedisCirculationCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate circulation cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan circulation cache keys: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisCirculationCache) Close() error {
	return c.client.Close()
}

// Ensure RedisCirculationCache implements CirculationCache
var _ appbilling.CirculationCache = (*RedisCirculationCache)(nil)
