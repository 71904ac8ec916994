package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

const (
	idempotencyKeyPrefix  = "idempotency:"
	defaultIdempotencyTTL = 30 * time.Minute
)

// NewRedisClient builds a client from cfg without connecting.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisIdempotencyStore implements IdempotencyStore using Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
	logger *logging.LoggerV2
}

// NewRedisIdempotencyStore creates a new Redis-backed idempotency store.
func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		logger: logging.NewLoggerV2("idempotency-store"),
	}
}

// Get returns the entry stored under key, or nil on a miss.
func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*models.IdempotencyEntry, error) {
	data, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if err == redis.Nil {
		s.logger.Debug("Idempotency miss", logging.Fields{"key": key})
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Idempotency get error", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("get idempotency entry: %w", err)
	}

	var entry models.IdempotencyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return &entry, nil
}

// Reserve stores entry with SET NX so only one caller wins the key.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, entry *models.IdempotencyEntry, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}

	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, data, withDefaultTTL(ttl)).Result()
	if err != nil {
		s.logger.Error("Idempotency reserve error", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Put overwrites the entry and restarts its TTL.
func (s *RedisIdempotencyStore) Put(ctx context.Context, key string, entry *models.IdempotencyEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ttl = withDefaultTTL(ttl)
	if err := s.client.Set(ctx, idempotencyKeyPrefix+key, data, ttl).Err(); err != nil {
		s.logger.Error("Idempotency set error", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return fmt.Errorf("store idempotency entry: %w", err)
	}

	s.logger.Debug("Idempotency entry stored", logging.Fields{
		"key":         key,
		"state":       entry.State,
		"status_code": entry.StatusCode,
		"ttl":         ttl.String(),
	})
	return nil
}

// Delete removes the entry under key.
func (s *RedisIdempotencyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete idempotency entry: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisIdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func withDefaultTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultIdempotencyTTL
	}
	return ttl
}
