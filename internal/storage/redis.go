package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// RedisConfig holds connection settings for the dataset cache.
type RedisConfig struct {
	Addr      string        `json:"addr" mapstructure:"addr"`
	Password  string        `json:"password" mapstructure:"password"`
	DB        int           `json:"db" mapstructure:"db"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `json:"key_prefix" mapstructure:"key_prefix"`
}

// DatasetCache serves previously generated datasets for seeded requests.
type DatasetCache interface {
	Get(ctx context.Context, key string) (*models.Dataset, error)
	Put(ctx context.Context, key string, dataset *models.Dataset) error
	Close() error
}

var _ DatasetCache = (*RedisCache)(nil)

// RedisCache caches generated datasets keyed by the hash of (params, seed).
// Because generation is deterministic for an explicit seed, a cache hit is
// exactly the dataset a fresh run would produce.
type RedisCache struct {
	config *RedisConfig
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisCache connects to Redis and verifies connectivity.
func NewRedisCache(config *RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.NewConfigurationError(errors.CodeStorageError, "redis address is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "synthlearn:dataset:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to ping redis")
	}

	return &RedisCache{config: config, client: client, logger: logger}, nil
}

// CacheKey derives the cache key from the generation request. Requests
// without an explicit seed are never cacheable.
func CacheKey(params models.GenerationParams) (string, bool) {
	if params.Seed == nil {
		return "", false
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), true
}

// Get fetches a cached dataset. A miss returns a DATA_NOT_FOUND storage
// error.
func (c *RedisCache) Get(ctx context.Context, key string) (*models.Dataset, error) {
	raw, err := c.client.Get(ctx, c.config.KeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, errors.NewStorageError(errors.CodeDataNotFound, "dataset not cached")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read cache")
	}

	var dataset models.Dataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to decode cached dataset")
	}
	return &dataset, nil
}

// Put stores a dataset under the request key with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, key string, dataset *models.Dataset) error {
	raw, err := json.Marshal(dataset)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to encode dataset")
	}

	if err := c.client.Set(ctx, c.config.KeyPrefix+key, raw, c.config.TTL).Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to write cache")
	}

	c.logger.WithFields(logrus.Fields{
		"key":      key,
		"profiles": len(dataset.Profiles),
	}).Debug("Cached dataset")
	return nil
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
