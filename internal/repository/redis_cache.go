package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	productsKey   = "catalog:products"
	tierKeyPrefix = "catalog:tier:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// tierEntry кешируемая пара тариф + продукт
type tierEntry struct {
	Product domain.Product     `json:"product"`
	Tier    domain.PricingTier `json:"tier"`
}

// RedisCacheRepository кеш справочника продуктов в Redis
type RedisCacheRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository создает кеш поверх уже подключенного клиента.
// ttl <= 0 означает значение по умолчанию.
func NewRedisCacheRepository(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}
}

// CacheProducts кеширует список активных продуктов
func (r *RedisCacheRepository) CacheProducts(ctx context.Context, products []domain.Product) error {
	return r.set(ctx, productsKey, products)
}

// GetCachedProducts возвращает список продуктов из кеша; found == false при промахе
func (r *RedisCacheRepository) GetCachedProducts(ctx context.Context) (products []domain.Product, found bool, err error) {
	found, err = r.get(ctx, productsKey, &products)
	return products, found, err
}

// CacheTier кеширует тариф вместе с продуктом
func (r *RedisCacheRepository) CacheTier(ctx context.Context, product domain.Product, tier domain.PricingTier) error {
	return r.set(ctx, tierKeyPrefix+tier.ID.String(), tierEntry{Product: product, Tier: tier})
}

// GetCachedTier возвращает тариф из кеша
func (r *RedisCacheRepository) GetCachedTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, bool, error) {
	var entry tierEntry
	found, err := r.get(ctx, tierKeyPrefix+tierID.String(), &entry)
	return entry.Product, entry.Tier, found, err
}

// Invalidate удаляет весь кеш справочника
func (r *RedisCacheRepository) Invalidate(ctx context.Context) error {
	keys := []string{productsKey}
	iter := r.client.Scan(ctx, 0, tierKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan catalog cache: %w", err)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.log.Errorw("Failed to invalidate catalog cache", "error", err)
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	r.log.Debugw("Catalog cache invalidated", "keys", len(keys))
	return nil
}

func (r *RedisCacheRepository) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.log.Errorw("Failed to write catalog cache", "error", err, "key", key)
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

func (r *RedisCacheRepository) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.log.Errorw("Error reading catalog cache", "error", err, "key", key)
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return true, nil
}
