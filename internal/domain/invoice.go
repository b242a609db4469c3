package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus статус счета
type InvoiceStatus string

const (
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Valid проверяет, что статус известен
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusPending, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Invoice счет, создается 1:1 с подпиской
type Invoice struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	CustomerID     uuid.UUID       `json:"customer_id" db:"customer_id"`
	SubscriptionID uuid.UUID       `json:"subscription_id" db:"subscription_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status         InvoiceStatus   `json:"status" db:"status"`
	IssueDate      time.Time       `json:"issue_date" db:"issue_date"`
	DueDate        time.Time       `json:"due_date" db:"due_date"`
	PaidDate       *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// NewPaidInvoice счет, оплаченный в день выставления
func NewPaidInvoice(sub Subscription, day time.Time) Invoice {
	paid := day
	return Invoice{
		ID:             uuid.New(),
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		Amount:         sub.FinalPrice,
		TotalAmount:    sub.FinalPrice,
		Status:         InvoiceStatusPaid,
		IssueDate:      day,
		DueDate:        day,
		PaidDate:       &paid,
	}
}
