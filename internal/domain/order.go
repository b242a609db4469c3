package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus статус ожидающего оплаты заказа
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal заказ больше не будет обрабатываться
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFulfilled
}

// CanTransitionTo проверяет допустимость перехода.
// failed не терминален: повторный вызов выполнения дозаписывает недостающие единицы.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusPaid || next == OrderStatusFailed
	case OrderStatusPaid:
		return next == OrderStatusFulfilled || next == OrderStatusFailed
	case OrderStatusFailed:
		return next == OrderStatusPaid || next == OrderStatusFulfilled
	}
	return false
}

// PendingOrder серверная запись заказа между запросом ссылки на оплату и выполнением.
// Token передается провайдеру в return URL и является ключом идемпотентности.
type PendingOrder struct {
	Token              uuid.UUID       `json:"token"`
	OrderID            string          `json:"order_id"`
	SessionID          string          `json:"-"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	Lines              []CartLine      `json:"lines"`
	Total              decimal.Decimal `json:"total"`
	SettlementTotal    decimal.Decimal `json:"settlement_total"`
	SourceCurrency     string          `json:"source_currency"`
	SettlementCurrency string          `json:"settlement_currency"`
	ProviderOrderID    string          `json:"provider_order_id,omitempty"`
	Status             OrderStatus     `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// FulfillmentUnit одна единица количества позиции заказа
type FulfillmentUnit struct {
	LineIndex int
	UnitIndex int
}

func (u FulfillmentUnit) String() string {
	return fmt.Sprintf("%d/%d", u.LineIndex, u.UnitIndex)
}

// Units перечисляет все единицы заказа в порядке позиций
func (o PendingOrder) Units() []FulfillmentUnit {
	var units []FulfillmentUnit
	for li, line := range o.Lines {
		for ui := 0; ui < line.Quantity; ui++ {
			units = append(units, FulfillmentUnit{LineIndex: li, UnitIndex: ui})
		}
	}
	return units
}

// FulfillmentRecord строка журнала выполнения: единица заказа уже активирована
type FulfillmentRecord struct {
	OrderToken     uuid.UUID `json:"order_token"`
	LineIndex      int       `json:"line_index"`
	UnitIndex      int       `json:"unit_index"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Unit единица заказа, к которой относится запись
func (r FulfillmentRecord) Unit() FulfillmentUnit {
	return FulfillmentUnit{LineIndex: r.LineIndex, UnitIndex: r.UnitIndex}
}

// NewOrderID идентификатор заказа на основе времени
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("ORD-%d", now.UnixMilli())
}
