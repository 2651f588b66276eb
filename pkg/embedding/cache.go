package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// CacheConfig holds configuration for the embedding cache
type CacheConfig struct {
	// L1Size is the in-memory entry budget
	L1Size int `mapstructure:"l1_size"`

	// TTL is the Redis expiry for cached vectors
	TTL time.Duration `mapstructure:"ttl"`

	// Prefix namespaces Redis keys
	Prefix string `mapstructure:"prefix"`
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1Size: 2048,
		TTL:    24 * time.Hour,
		Prefix: "glasshouse:embedding",
	}
}

// Cache is a two-level embedding cache. L1 is an in-process LRU, L2 an
// optional Redis tier shared across instances. Redis failures degrade to
// L1 only and never fail the caller.
type Cache struct {
	l1      *lru.Cache[string, []float32]
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *observability.Metrics
	logger  observability.Logger
}

// NewCache creates an embedding cache. redisClient may be nil for a
// purely in-process cache.
func NewCache(config CacheConfig, redisClient *redis.Client, metrics *observability.Metrics, logger observability.Logger) (*Cache, error) {
	if config.L1Size <= 0 {
		config.L1Size = DefaultCacheConfig().L1Size
	}
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig().TTL
	}
	if config.Prefix == "" {
		config.Prefix = DefaultCacheConfig().Prefix
	}

	l1, err := lru.New[string, []float32](config.L1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &Cache{
		l1:      l1,
		redis:   redisClient,
		ttl:     config.TTL,
		prefix:  config.Prefix,
		metrics: metrics,
		logger:  logger.WithPrefix("embedding-cache"),
	}, nil
}

// CacheKey derives the cache key for a (model, task, text) triple.
func CacheKey(model string, task TaskType, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + string(task) + "|" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for key, promoting Redis hits into L1.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.l1.Get(key); ok {
		c.recordLookup(true)
		return vec, true
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
		if err == nil {
			var vec []float32
			if err := json.Unmarshal(data, &vec); err == nil {
				c.l1.Add(key, vec)
				c.recordLookup(true)
				return vec, true
			}
			c.logger.Warn("Discarding corrupt cache entry", map[string]interface{}{
				"key": key,
			})
		} else if err != redis.Nil {
			c.logger.Debug("Redis cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	c.recordLookup(false)
	return nil, false
}

// Put stores a vector in both tiers
func (c *Cache) Put(ctx context.Context, key string, vec []float32) {
	c.l1.Add(key, vec)

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Debug("Redis cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (c *Cache) redisKey(key string) string {
	return c.prefix + ":" + key
}

func (c *Cache) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup("embedding", hit)
	}
}
