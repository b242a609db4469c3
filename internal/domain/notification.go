package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationLog запись об отправленном уведомлении, уникальна по (SubscriptionID, Day)
type NotificationLog struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Day            time.Time `json:"day"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Email          string    `json:"email"`
	SentAt         time.Time `json:"sent_at"`
}
