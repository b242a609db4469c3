// Package checkout реализует пошаговое оформление заказа:
// review -> customer -> payment -> success.
package checkout

import (
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Step шаг оформления заказа
type Step string

const (
	StepReview   Step = "review"
	StepCustomer Step = "customer"
	StepPayment  Step = "payment"
	StepSuccess  Step = "success"
)

// CanTransitionTo вперед по одному шагу или назад с payment и customer.
// success терминален.
func (s Step) CanTransitionTo(next Step) bool {
	switch s {
	case StepReview:
		return next == StepCustomer
	case StepCustomer:
		return next == StepPayment || next == StepReview
	case StepPayment:
		return next == StepSuccess || next == StepCustomer
	}
	return false
}

// State состояние оформления, хранится в сессии под checkout:<sid>
type State struct {
	Step               Step             `json:"step"`
	CustomerID         uuid.UUID        `json:"customer_id,omitempty"`
	Customer           *domain.Customer `json:"customer,omitempty"`
	OrderID            string           `json:"order_id,omitempty"`
	OrderToken         uuid.UUID        `json:"order_token,omitempty"`
	PaymentURL         string           `json:"payment_url,omitempty"`
	Total              decimal.Decimal  `json:"total"`
	SettlementTotal    decimal.Decimal  `json:"settlement_total"`
	Currency           string           `json:"currency"`
	SettlementCurrency string           `json:"settlement_currency"`
	LastError          string           `json:"last_error,omitempty"`
	PaymentAttempted   bool             `json:"payment_attempted"`
}

// HasCustomer клиент уже сохранен на шаге customer
func (s State) HasCustomer() bool {
	return s.CustomerID != uuid.Nil
}
