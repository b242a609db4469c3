package repository

import (
	"context"
	"slices"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// InMemoryCatalogRepository справочник продуктов в памяти
type InMemoryCatalogRepository struct {
	db  *InMemoryDB
	log *logger.Logger
}

// NewInMemoryCatalogRepository создает справочник поверх общего хранилища
func NewInMemoryCatalogRepository(db *InMemoryDB, log *logger.Logger) *InMemoryCatalogRepository {
	return &InMemoryCatalogRepository{db: db, log: log}
}

// ListProducts возвращает активные продукты с активными тарифами
func (r *InMemoryCatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	products := make([]domain.Product, 0, len(r.db.products))
	for id, p := range r.db.products {
		if !p.Active {
			continue
		}
		products = append(products, r.db.productWithTiers(id, true))
	}
	slices.SortFunc(products, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return products, nil
}

// GetTier возвращает тариф и его продукт (без фильтра по активности)
func (r *InMemoryCatalogRepository) GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	tier, ok := r.db.tiers[tierID]
	if !ok {
		return domain.Product{}, domain.PricingTier{}, domain.NewNotFoundError("pricing_tier", tierID.String())
	}
	product, ok := r.db.products[tier.ProductID]
	if !ok {
		return domain.Product{}, domain.PricingTier{}, domain.NewNotFoundError("product", tier.ProductID.String())
	}
	return product, tier, nil
}
