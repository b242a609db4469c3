package postgres

import (
	"context"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tierColumns = `t.id, t.product_id, t.name, t.price, t.duration_months, t.discount_percent, t.features, t.active`

// PostgresCatalogRepository справочник продуктов в PostgreSQL
type PostgresCatalogRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresCatalogRepository создает справочник продуктов
func NewPostgresCatalogRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db, log: log}
}

// ListProducts возвращает активные продукты с активными тарифами
func (r *PostgresCatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, active, created_at
		FROM products
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	tierRows, err := r.db.Query(ctx, `
		SELECT `+tierColumns+`
		FROM pricing_tiers t
		JOIN products p ON p.id = t.product_id
		WHERE p.active AND t.active
		ORDER BY t.duration_months, t.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing tiers: %w", err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var t domain.PricingTier
		if err := tierRows.Scan(&t.ID, &t.ProductID, &t.Name, &t.Price, &t.DurationMonths, &t.DiscountPercent, &t.Features, &t.Active); err != nil {
			return nil, fmt.Errorf("failed to scan pricing tier: %w", err)
		}
		if i, ok := index[t.ProductID]; ok {
			products[i].Tiers = append(products[i].Tiers, t)
		}
	}
	if err := tierRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pricing tiers: %w", err)
	}

	return products, nil
}

// GetTier возвращает тариф и его продукт
func (r *PostgresCatalogRepository) GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error) {
	var (
		p domain.Product
		t domain.PricingTier
	)
	err := r.db.QueryRow(ctx, `
		SELECT `+tierColumns+`, p.id, p.name, p.description, p.active, p.created_at
		FROM pricing_tiers t
		JOIN products p ON p.id = t.product_id
		WHERE t.id = $1`, tierID).
		Scan(&t.ID, &t.ProductID, &t.Name, &t.Price, &t.DurationMonths, &t.DiscountPercent, &t.Features, &t.Active,
			&p.ID, &p.Name, &p.Description, &p.Active, &p.CreatedAt)
	if err != nil {
		return domain.Product{}, domain.PricingTier{}, mapError(err, "pricing_tier", tierID.String())
	}
	return p, t, nil
}

// UpsertProduct сохраняет продукт вместе с тарифами в одной транзакции
func (r *PostgresCatalogRepository) UpsertProduct(ctx context.Context, p domain.Product) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO products (id, name, description, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, active = EXCLUDED.active`,
		p.ID, p.Name, p.Description, p.Active)
	if err != nil {
		return mapError(err, "product", p.ID.String())
	}

	for _, t := range p.Tiers {
		features := t.Features
		if features == nil {
			features = []string{}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO pricing_tiers (id, product_id, name, price, duration_months, discount_percent, features, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
				duration_months = EXCLUDED.duration_months, discount_percent = EXCLUDED.discount_percent,
				features = EXCLUDED.features, active = EXCLUDED.active`,
			t.ID, p.ID, t.Name, t.Price, t.DurationMonths, t.DiscountPercent, features, t.Active)
		if err != nil {
			return mapError(err, "pricing_tier", t.ID.String())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}
	r.log.Infow("Product saved", "productID", p.ID, "tiers", len(p.Tiers))
	return nil
}
