package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ReportingRepository выборки для внешнего API через sqlx
type ReportingRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewReportingRepository создает репозиторий отчетов
func NewReportingRepository(db *sqlx.DB, log *logger.Logger) *ReportingRepository {
	return &ReportingRepository{db: db, log: log}
}

// limitArg NULL в LIMIT означает выборку без ограничения
func limitArg(p repository.Page) any {
	if p.Limit <= 0 {
		return nil
	}
	return p.Limit
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.Today(*t)
}

const subscribedExpr = `EXISTS (SELECT 1 FROM subscriptions s WHERE s.customer_id = c.id AND s.status = 'active')`

// ListCustomers клиенты, новые первыми
func (r *ReportingRepository) ListCustomers(ctx context.Context, f repository.CustomerFilter) ([]domain.Customer, int, error) {
	var subscribed any
	if f.Subscribed != nil {
		subscribed = *f.Subscribed
	}
	where := ` WHERE ($1::boolean IS NULL OR ` + subscribedExpr + ` = $1::boolean)`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM customers c`+where, subscribed); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	customers := make([]domain.Customer, 0)
	err := r.db.SelectContext(ctx, &customers, `
		SELECT c.id, c.name, COALESCE(c.email, '') AS email, COALESCE(c.phone, '') AS phone,
			COALESCE(c.phone_auth, '') AS phone_auth, COALESCE(c.address, '') AS address,
			COALESCE(c.auth_user_id, '') AS auth_user_id, c.created_at, c.updated_at
		FROM customers c`+where+`
		ORDER BY c.created_at DESC, c.id
		LIMIT $2 OFFSET $3`, subscribed, limitArg(f.Page), f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select customers: %w", err)
	}
	return customers, total, nil
}

// ListSubscriptions подписки с фильтром по статусу и дате начала
func (r *ReportingRepository) ListSubscriptions(ctx context.Context, f repository.SubscriptionFilter) ([]domain.Subscription, int, error) {
	where := ` WHERE ($1 = '' OR status = $1) AND ($2::date IS NULL OR start_date >= $2::date) AND ($3::date IS NULL OR start_date <= $3::date)`
	args := []any{string(f.Status), dateArg(f.Range.From), dateArg(f.Range.To)}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM subscriptions`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	subs := make([]domain.Subscription, 0)
	err := r.db.SelectContext(ctx, &subs, `
		SELECT id, customer_id, pricing_tier_id, start_date, end_date, status, final_price, created_at
		FROM subscriptions`+where+`
		ORDER BY start_date DESC, id
		LIMIT $4 OFFSET $5`, append(args, limitArg(f.Page), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select subscriptions: %w", err)
	}
	return subs, total, nil
}

// ListInvoices счета с фильтром по статусу и дате выставления
func (r *ReportingRepository) ListInvoices(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, int, error) {
	where := ` WHERE ($1 = '' OR status = $1) AND ($2::date IS NULL OR issue_date >= $2::date) AND ($3::date IS NULL OR issue_date <= $3::date)`
	args := []any{string(f.Status), dateArg(f.Range.From), dateArg(f.Range.To)}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM invoices`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	invoices := make([]domain.Invoice, 0)
	err := r.db.SelectContext(ctx, &invoices, `
		SELECT id, customer_id, COALESCE(subscription_id, '00000000-0000-0000-0000-000000000000'::uuid) AS subscription_id,
			amount, total_amount, status, issue_date, due_date, paid_date, created_at
		FROM invoices`+where+`
		ORDER BY issue_date DESC, id
		LIMIT $4 OFFSET $5`, append(args, limitArg(f.Page), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select invoices: %w", err)
	}
	return invoices, total, nil
}

type productRow struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

type tierRow struct {
	ID              uuid.UUID       `db:"id"`
	ProductID       uuid.UUID       `db:"product_id"`
	Name            string          `db:"name"`
	Price           decimal.Decimal `db:"price"`
	DurationMonths  int             `db:"duration_months"`
	DiscountPercent decimal.Decimal `db:"discount_percent"`
	Features        string          `db:"features"`
	Active          bool            `db:"active"`
}

func (t tierRow) toDomain() (domain.PricingTier, error) {
	tier := domain.PricingTier{
		ID:              t.ID,
		ProductID:       t.ProductID,
		Name:            t.Name,
		Price:           t.Price,
		DurationMonths:  t.DurationMonths,
		DiscountPercent: t.DiscountPercent,
		Active:          t.Active,
	}
	if err := json.Unmarshal([]byte(t.Features), &tier.Features); err != nil {
		return domain.PricingTier{}, fmt.Errorf("failed to decode features of tier %s: %w", t.ID, err)
	}
	return tier, nil
}

// ListProducts все продукты (включая неактивные) с тарифами
func (r *ReportingRepository) ListProducts(ctx context.Context, p repository.Page) ([]domain.Product, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var rows []productRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, description, active, created_at
		FROM products
		ORDER BY name, id
		LIMIT $1 OFFSET $2`, limitArg(p), p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	if len(rows) == 0 {
		return products, total, nil
	}

	ids := make([]string, 0, len(rows))
	index := make(map[uuid.UUID]int, len(rows))
	for i, row := range rows {
		products = append(products, domain.Product{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Active:      row.Active,
			CreatedAt:   row.CreatedAt,
		})
		ids = append(ids, row.ID.String())
		index[row.ID] = i
	}

	var tiers []tierRow
	err = r.db.SelectContext(ctx, &tiers, `
		SELECT id, product_id, name, price, duration_months, discount_percent,
			array_to_json(features)::text AS features, active
		FROM pricing_tiers
		WHERE product_id = ANY($1::uuid[])
		ORDER BY duration_months, name`, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select pricing tiers: %w", err)
	}
	for _, row := range tiers {
		tier, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		i := index[row.ProductID]
		products[i].Tiers = append(products[i].Tiers, tier)
	}
	return products, total, nil
}

// Analytics считает сводку; диапазон применяется к дате создания клиента,
// дате начала подписки и дате выставления счета
func (r *ReportingRepository) Analytics(ctx context.Context, rng repository.DateRange) (repository.Analytics, error) {
	var a repository.Analytics
	err := r.db.GetContext(ctx, &a, `
		WITH c AS (
			SELECT c.id, `+subscribedExpr+` AS subscribed
			FROM customers c
			WHERE ($1::date IS NULL OR c.created_at::date >= $1::date) AND ($2::date IS NULL OR c.created_at::date <= $2::date)
		), s AS (
			SELECT status FROM subscriptions
			WHERE ($1::date IS NULL OR start_date >= $1::date) AND ($2::date IS NULL OR start_date <= $2::date)
		), i AS (
			SELECT status, total_amount FROM invoices
			WHERE ($1::date IS NULL OR issue_date >= $1::date) AND ($2::date IS NULL OR issue_date <= $2::date)
		)
		SELECT
			(SELECT COUNT(*) FROM c) AS total_customers,
			(SELECT COUNT(*) FROM c WHERE subscribed) AS subscribed_customers,
			(SELECT COUNT(*) FROM s WHERE status = 'active') AS active_subscriptions,
			(SELECT COUNT(*) FROM s WHERE status = 'expired') AS expired_subscriptions,
			(SELECT COUNT(*) FROM s WHERE status = 'cancelled') AS cancelled_subscriptions,
			(SELECT COUNT(*) FROM i WHERE status = 'paid') AS paid_invoices,
			(SELECT COUNT(*) FROM i WHERE status = 'pending') AS pending_invoices,
			(SELECT COUNT(*) FROM i WHERE status = 'overdue') AS overdue_invoices,
			(SELECT COALESCE(SUM(total_amount), 0) FROM i WHERE status = 'paid') AS revenue`,
		dateArg(rng.From), dateArg(rng.To))
	if err != nil {
		return repository.Analytics{}, fmt.Errorf("failed to compute analytics: %w", err)
	}
	return a, nil
}
