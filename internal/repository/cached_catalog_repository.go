package repository

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CachedCatalogRepository реализует CatalogRepository с кешированием в Redis.
// Одновременные промахи по одному ключу сводятся в один запрос к хранилищу.
type CachedCatalogRepository struct {
	repo  CatalogRepository
	cache *RedisCacheRepository
	group singleflight.Group
	log   *logger.Logger
}

// NewCachedCatalogRepository создает новый справочник с кешированием
func NewCachedCatalogRepository(repo CatalogRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedCatalogRepository {
	return &CachedCatalogRepository{repo: repo, cache: cache, log: log}
}

// ListProducts получает продукты (сначала из кеша, потом из хранилища)
func (r *CachedCatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cached, found, err := r.cache.GetCachedProducts(ctx)
	if err != nil {
		// Продолжаем выполнение при ошибке кеша
		r.log.Warnw("Error getting products from cache", "error", err)
	}
	if found {
		return cached, nil
	}

	v, err, _ := r.group.Do(productsKey, func() (any, error) {
		products, err := r.repo.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.cache.CacheProducts(ctx, products); err != nil {
			r.log.Warnw("Failed to cache products after fetching", "error", err)
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

// GetTier получает тариф (сначала из кеша, потом из хранилища)
func (r *CachedCatalogRepository) GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error) {
	product, tier, found, err := r.cache.GetCachedTier(ctx, tierID)
	if err != nil {
		r.log.Warnw("Error getting tier from cache", "error", err, "tierID", tierID)
	}
	if found {
		return product, tier, nil
	}

	v, err, _ := r.group.Do(tierKeyPrefix+tierID.String(), func() (any, error) {
		product, tier, err := r.repo.GetTier(ctx, tierID)
		if err != nil {
			return nil, err
		}
		if err := r.cache.CacheTier(ctx, product, tier); err != nil {
			r.log.Warnw("Failed to cache tier after fetching", "error", err, "tierID", tierID)
		}
		return tierEntry{Product: product, Tier: tier}, nil
	})
	if err != nil {
		return domain.Product{}, domain.PricingTier{}, err
	}
	entry := v.(tierEntry)
	return entry.Product, entry.Tier, nil
}
