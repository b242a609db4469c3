package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Valid проверяет, что статус известен
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return true
	}
	return false
}

// Subscription представляет собой модель подписки
type Subscription struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	CustomerID    uuid.UUID          `json:"customer_id" db:"customer_id"`
	PricingTierID uuid.UUID          `json:"pricing_tier_id" db:"pricing_tier_id"`
	StartDate     time.Time          `json:"start_date" db:"start_date"`
	EndDate       time.Time          `json:"end_date" db:"end_date"`
	Status        SubscriptionStatus `json:"status" db:"status"`
	FinalPrice    decimal.Decimal    `json:"final_price" db:"final_price"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}

// ExpiringSubscription подписка, истекающая в горизонте уведомлений, вместе с клиентом
type ExpiringSubscription struct {
	Subscription
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	ProductName   string `json:"product_name"`
	TierName      string `json:"tier_name"`
}

// SubscriptionRequest заявка клиента на подписку, обрабатывается администратором
type SubscriptionRequest struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	PricingTierID uuid.UUID `json:"pricing_tier_id"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// SubscriptionRequestInput тело запроса на создание заявки
type SubscriptionRequestInput struct {
	PricingTierID uuid.UUID `json:"pricing_tier_id" validate:"required"`
	Notes         string    `json:"notes" validate:"max=1000"`
}

// Today возвращает календарную дату момента t (полночь UTC)
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths дата окончания подписки: start + months календарных месяцев
func AddMonths(start time.Time, months int) time.Time {
	return start.AddDate(0, months, 0)
}
