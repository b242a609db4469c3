package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOrderRepository ожидающие заказы и журнал выполнения в PostgreSQL
type PostgresOrderRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresOrderRepository создает репозиторий заказов
func NewPostgresOrderRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db, log: log}
}

// CreatePendingOrder сохраняет новый заказ; позиции хранятся в jsonb
func (r *PostgresOrderRepository) CreatePendingOrder(ctx context.Context, order domain.PendingOrder) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order lines: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO pending_orders (token, order_id, session_id, customer_id, lines, total, settlement_total,
			source_currency, settlement_currency, provider_order_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		order.Token,
		order.OrderID,
		order.SessionID,
		order.CustomerID,
		linesJSON,
		order.Total,
		order.SettlementTotal,
		order.SourceCurrency,
		order.SettlementCurrency,
		order.ProviderOrderID,
		order.Status,
	)
	if err != nil {
		r.log.Errorw("Failed to create pending order", "error", err, "orderID", order.OrderID)
		return mapError(err, "pending_order", order.Token.String())
	}
	return nil
}

// GetPendingOrder возвращает заказ по токену
func (r *PostgresOrderRepository) GetPendingOrder(ctx context.Context, token uuid.UUID) (domain.PendingOrder, error) {
	var (
		o         domain.PendingOrder
		linesJSON []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT token, order_id, session_id, customer_id, lines, total, settlement_total,
			source_currency, settlement_currency, provider_order_id, status, created_at, updated_at
		FROM pending_orders
		WHERE token = $1`, token).
		Scan(&o.Token, &o.OrderID, &o.SessionID, &o.CustomerID, &linesJSON, &o.Total, &o.SettlementTotal,
			&o.SourceCurrency, &o.SettlementCurrency, &o.ProviderOrderID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.PendingOrder{}, mapError(err, "pending_order", token.String())
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return domain.PendingOrder{}, fmt.Errorf("failed to unmarshal order lines: %w", err)
	}
	return o, nil
}

// UpdateOrderStatus переводит заказ в новый статус под блокировкой строки
func (r *PostgresOrderRepository) UpdateOrderStatus(ctx context.Context, token uuid.UUID, status domain.OrderStatus) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var current domain.OrderStatus
		err := tx.QueryRow(ctx, `SELECT status FROM pending_orders WHERE token = $1 FOR UPDATE`, token).Scan(&current)
		if err != nil {
			return mapError(err, "pending_order", token.String())
		}
		if current == status {
			return nil
		}
		if !current.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, current, status)
		}
		_, err = tx.Exec(ctx, `UPDATE pending_orders SET status = $2, updated_at = NOW() WHERE token = $1`, token, status)
		return err
	})
}

// SetProviderOrderID запоминает ID заказа у платежного провайдера
func (r *PostgresOrderRepository) SetProviderOrderID(ctx context.Context, token uuid.UUID, providerOrderID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE pending_orders SET provider_order_id = $2, updated_at = NOW() WHERE token = $1`, token, providerOrderID)
	if err != nil {
		return mapError(err, "pending_order", token.String())
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("pending_order", token.String())
	}
	return nil
}

// ListFulfillment возвращает записи журнала по заказу
func (r *PostgresOrderRepository) ListFulfillment(ctx context.Context, token uuid.UUID) ([]domain.FulfillmentRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT order_token, line_index, unit_index, subscription_id, invoice_id, created_at
		FROM fulfillment_units
		WHERE order_token = $1
		ORDER BY line_index, unit_index`, token)
	if err != nil {
		return nil, fmt.Errorf("failed to query fulfillment units: %w", err)
	}
	defer rows.Close()

	var records []domain.FulfillmentRecord
	for rows.Next() {
		var rec domain.FulfillmentRecord
		if err := rows.Scan(&rec.OrderToken, &rec.LineIndex, &rec.UnitIndex, &rec.SubscriptionID, &rec.InvoiceID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fulfillment unit: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ActivateUnit в одной транзакции пишет подписку, счет и запись журнала.
// Нарушение первичного ключа журнала откатывает все и дает ErrDuplicate.
func (r *PostgresOrderRepository) ActivateUnit(ctx context.Context, token uuid.UUID, unit domain.FulfillmentUnit, sub domain.Subscription, inv domain.Invoice) (domain.FulfillmentRecord, error) {
	rec := domain.FulfillmentRecord{
		OrderToken:     token,
		LineIndex:      unit.LineIndex,
		UnitIndex:      unit.UnitIndex,
		SubscriptionID: sub.ID,
		InvoiceID:      inv.ID,
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO subscriptions (id, customer_id, pricing_tier_id, start_date, end_date, status, final_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sub.ID, sub.CustomerID, sub.PricingTierID, sub.StartDate, sub.EndDate, sub.Status, sub.FinalPrice)
		if err != nil {
			return mapError(err, "subscription", sub.ID.String())
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO invoices (id, customer_id, subscription_id, amount, total_amount, status, issue_date, due_date, paid_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			inv.ID, inv.CustomerID, sub.ID, inv.Amount, inv.TotalAmount, inv.Status, inv.IssueDate, inv.DueDate, inv.PaidDate)
		if err != nil {
			return mapError(err, "invoice", inv.ID.String())
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO fulfillment_units (order_token, line_index, unit_index, subscription_id, invoice_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			token, unit.LineIndex, unit.UnitIndex, sub.ID, inv.ID).Scan(&rec.CreatedAt)
		if err != nil {
			return mapError(err, "fulfillment_unit", token.String()+"/"+unit.String())
		}
		return nil
	})
	if err != nil {
		return domain.FulfillmentRecord{}, err
	}
	return rec, nil
}
