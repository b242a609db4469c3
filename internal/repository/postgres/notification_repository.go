package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotificationLogRepository журнал уведомлений в PostgreSQL
type PostgresNotificationLogRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresNotificationLogRepository создает журнал уведомлений
func NewPostgresNotificationLogRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresNotificationLogRepository {
	return &PostgresNotificationLogRepository{db: db, log: log}
}

// WasNotified было ли уведомление по подписке в указанный день
func (r *PostgresNotificationLogRepository) WasNotified(ctx context.Context, subscriptionID uuid.UUID, day time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notification_log WHERE subscription_id = $1 AND day = $2)`,
		subscriptionID, domain.Today(day)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query notification log: %w", err)
	}
	return exists, nil
}

// Record добавляет запись; повтор за тот же день дает ErrDuplicate
func (r *PostgresNotificationLogRepository) Record(ctx context.Context, entry domain.NotificationLog) error {
	sentAt := entry.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_log (subscription_id, day, customer_id, email, sent_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.SubscriptionID, domain.Today(entry.Day), entry.CustomerID, entry.Email, sentAt)
	if err != nil {
		return mapError(err, "notification_log", entry.SubscriptionID.String())
	}
	return nil
}
