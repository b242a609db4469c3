package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `s.id, s.customer_id, s.pricing_tier_id, s.start_date, s.end_date, s.status, s.final_price, s.created_at`

// PostgresSubscriptionRepository подписки, счета и заявки в PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает репозиторий подписок
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db, log: log}
}

func scanSubscription(row pgx.Row, dst *domain.Subscription, extra ...any) error {
	args := []any{&dst.ID, &dst.CustomerID, &dst.PricingTierID, &dst.StartDate, &dst.EndDate, &dst.Status, &dst.FinalPrice, &dst.CreatedAt}
	return row.Scan(append(args, extra...)...)
}

// ListByCustomer возвращает подписки клиента, новые первыми
func (r *PostgresSubscriptionRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions s
		WHERE s.customer_id = $1
		ORDER BY s.start_date DESC, s.created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		var s domain.Subscription
		if err := scanSubscription(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListInvoicesByCustomer возвращает счета клиента, новые первыми
func (r *PostgresSubscriptionRepository) ListInvoicesByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, COALESCE(subscription_id, '00000000-0000-0000-0000-000000000000'::uuid),
			amount, total_amount, status, issue_date, due_date, paid_date, created_at
		FROM invoices
		WHERE customer_id = $1
		ORDER BY issue_date DESC, created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.SubscriptionID, &inv.Amount, &inv.TotalAmount, &inv.Status,
			&inv.IssueDate, &inv.DueDate, &inv.PaidDate, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ListExpiring возвращает активные подписки с датой окончания в [from, to]
// вместе с контактами клиента и названиями тарифа
func (r *PostgresSubscriptionRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]domain.ExpiringSubscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+subscriptionColumns+`, c.name, COALESCE(c.email, ''), p.name, t.name
		FROM subscriptions s
		JOIN customers c ON c.id = s.customer_id
		JOIN pricing_tiers t ON t.id = s.pricing_tier_id
		JOIN products p ON p.id = t.product_id
		WHERE s.status = 'active' AND s.end_date BETWEEN $1 AND $2
		ORDER BY s.end_date, s.id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring subscriptions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ExpiringSubscription, 0)
	for rows.Next() {
		var e domain.ExpiringSubscription
		if err := scanSubscription(rows, &e.Subscription, &e.CustomerName, &e.CustomerEmail, &e.ProductName, &e.TierName); err != nil {
			return nil, fmt.Errorf("failed to scan expiring subscription: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// CreateRequest сохраняет заявку клиента со статусом pending
func (r *PostgresSubscriptionRepository) CreateRequest(ctx context.Context, req domain.SubscriptionRequest) (domain.SubscriptionRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = repository.SubscriptionRequestPending

	err := r.db.QueryRow(ctx, `
		INSERT INTO subscription_requests (id, customer_id, pricing_tier_id, notes, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		req.ID, req.CustomerID, req.PricingTierID, req.Notes, req.Status).Scan(&req.CreatedAt)
	if err != nil {
		return domain.SubscriptionRequest{}, mapError(err, "subscription_request", req.ID.String())
	}

	r.log.Infow("Subscription request created", "requestID", req.ID, "customerID", req.CustomerID)
	return req, nil
}
