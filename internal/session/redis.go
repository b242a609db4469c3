package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "session:"
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// RedisStore хранилище сессий в Redis. TTL продлевается при каждой записи.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisStore создает хранилище поверх готового клиента
func NewRedisStore(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl, log: log}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Error getting session value from Redis", "error", err, "key", key)
		return nil, fmt.Errorf("failed to get session value: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		r.log.Errorw("Failed to store session value in Redis", "error", err, "key", key)
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		r.log.Errorw("Failed to delete session value from Redis", "error", err, "key", key)
		return fmt.Errorf("failed to delete session value: %w", err)
	}
	return nil
}

// NewRedisClient создает клиент Redis и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return client, nil
}
