package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	CatalogRepository
	lists atomic.Int32
	tiers atomic.Int32
}

func (c *countingCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	c.lists.Add(1)
	return c.CatalogRepository.ListProducts(ctx)
}

func (c *countingCatalog) GetTier(ctx context.Context, id uuid.UUID) (domain.Product, domain.PricingTier, error) {
	c.tiers.Add(1)
	return c.CatalogRepository.GetTier(ctx, id)
}

func newCachedCatalog(t *testing.T) (*CachedCatalogRepository, *countingCatalog, *miniredis.Miniredis, domain.PricingTier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := NewInMemoryDB()
	_, tier := seedCatalog(db)
	inner := &countingCatalog{CatalogRepository: NewInMemoryCatalogRepository(db, logger.NewNop())}
	cache := NewRedisCacheRepository(client, 0, logger.NewNop())
	return NewCachedCatalogRepository(inner, cache, logger.NewNop()), inner, mr, tier
}

func TestCachedCatalog_ListProducts(t *testing.T) {
	ctx := context.Background()
	repo, inner, mr, _ := newCachedCatalog(t)

	first, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	second, err := repo.ListProducts(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.lists.Load())
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].Tiers[0].Price.Equal(second[0].Tiers[0].Price))
	assert.True(t, mr.Exists(productsKey))

	mr.FastForward(defaultCacheTTL)
	_, err = repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.lists.Load())
}

func TestCachedCatalog_GetTier(t *testing.T) {
	ctx := context.Background()
	repo, inner, _, tier := newCachedCatalog(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, got, err := repo.GetTier(ctx, tier.ID)
			assert.NoError(t, err)
			assert.Equal(t, tier.ID, got.ID)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, inner.tiers.Load(), int32(8))

	calls := inner.tiers.Load()
	_, _, err := repo.GetTier(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, calls, inner.tiers.Load(), "served from cache")

	_, _, err = repo.GetTier(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedCatalog_CacheDown(t *testing.T) {
	ctx := context.Background()
	repo, inner, mr, tier := newCachedCatalog(t)
	mr.Close()

	_, got, err := repo.GetTier(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.ID, got.ID)
	assert.Equal(t, int32(1), inner.tiers.Load())
}

func TestRedisCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	repo, inner, mr, tier := newCachedCatalog(t)

	_, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	_, _, err = repo.GetTier(ctx, tier.ID)
	require.NoError(t, err)

	require.NoError(t, repo.cache.Invalidate(ctx))
	assert.False(t, mr.Exists(productsKey))
	assert.False(t, mr.Exists(tierKeyPrefix+tier.ID.String()))

	_, err = repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.lists.Load())
}
