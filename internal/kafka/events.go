// Package kafka события заказа и подписок, публикуемые во внешнюю шину.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Топики событий
const (
	TopicOrderFulfilled        = "order.fulfilled"
	TopicSubscriptionActivated = "subscription.activated"
	TopicAccountProvisioned    = "account.provisioned"
	TopicNotificationSent      = "notification.sent"
)

// HeaderEventType заголовок сообщения с типом события
const HeaderEventType = "event_type"

// OrderFulfilledEvent итог выполнения заказа
type OrderFulfilledEvent struct {
	OrderID    string          `json:"order_id"`
	Token      uuid.UUID       `json:"token"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Status     string          `json:"status"`
	Activated  int             `json:"activated"`
	Total      int             `json:"total"`
	Failed     int             `json:"failed"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SubscriptionActivatedEvent активирована одна единица заказа
type SubscriptionActivatedEvent struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	PricingTierID  uuid.UUID       `json:"pricing_tier_id"`
	OrderID        string          `json:"order_id"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Timestamp      time.Time       `json:"timestamp"`
}

// AccountProvisionedEvent клиенту создана учетная запись
type AccountProvisionedEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	AuthUserID string    `json:"auth_user_id"`
	Phone      string    `json:"phone"`
	Timestamp  time.Time `json:"timestamp"`
}

// NotificationSentEvent отправлено письмо об истечении подписки
type NotificationSentEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Email          string    `json:"email"`
	EndDate        time.Time `json:"end_date"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher интерфейс для отправки событий
type Publisher interface {
	PublishOrderFulfilled(ctx context.Context, e OrderFulfilledEvent) error
	PublishSubscriptionActivated(ctx context.Context, e SubscriptionActivatedEvent) error
	PublishAccountProvisioned(ctx context.Context, e AccountProvisionedEvent) error
	PublishNotificationSent(ctx context.Context, e NotificationSentEvent) error
	Close() error
}

// Message закодированное событие, готовое к отправке любым клиентом
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Encode сериализует событие в JSON. Ключ задает партицию: события одного
// заказа или клиента попадают в одну партицию.
func Encode(topic, key string, event any) (Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("kafka: failed to marshal %s event: %w", topic, err)
	}
	return Message{Topic: topic, Key: []byte(key), Value: value}, nil
}

// NopPublisher используется, когда Kafka отключена
type NopPublisher struct{}

func (NopPublisher) PublishOrderFulfilled(context.Context, OrderFulfilledEvent) error { return nil }

func (NopPublisher) PublishSubscriptionActivated(context.Context, SubscriptionActivatedEvent) error {
	return nil
}

func (NopPublisher) PublishAccountProvisioned(context.Context, AccountProvisionedEvent) error {
	return nil
}

func (NopPublisher) PublishNotificationSent(context.Context, NotificationSentEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
