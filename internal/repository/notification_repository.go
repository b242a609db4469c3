package repository

import (
	"context"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// InMemoryNotificationLogRepository журнал уведомлений в памяти
type InMemoryNotificationLogRepository struct {
	db  *InMemoryDB
	log *logger.Logger
}

// NewInMemoryNotificationLogRepository создает журнал уведомлений поверх общего хранилища
func NewInMemoryNotificationLogRepository(db *InMemoryDB, log *logger.Logger) *InMemoryNotificationLogRepository {
	return &InMemoryNotificationLogRepository{db: db, log: log}
}

// WasNotified было ли уведомление по подписке в указанный день
func (r *InMemoryNotificationLogRepository) WasNotified(ctx context.Context, subscriptionID uuid.UUID, day time.Time) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	_, ok := r.db.notifications[notificationKey{subscriptionID: subscriptionID, day: day.UTC().Format(dayLayout)}]
	return ok, nil
}

// Record добавляет запись; повтор за тот же день дает ErrDuplicate
func (r *InMemoryNotificationLogRepository) Record(ctx context.Context, entry domain.NotificationLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := notificationKey{subscriptionID: entry.SubscriptionID, day: entry.Day.UTC().Format(dayLayout)}
	if _, ok := r.db.notifications[key]; ok {
		return domain.NewDuplicateError("notification_log", "subscription_day", entry.SubscriptionID.String()+"@"+key.day)
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = r.db.now()
	}
	r.db.notifications[key] = entry
	return nil
}
