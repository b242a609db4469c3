package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingTier_UnitPrice(t *testing.T) {
	tier := PricingTier{Price: decimal.NewFromInt(200)}
	assert.True(t, tier.UnitPrice().Equal(decimal.NewFromInt(200)))

	tier.DiscountPercent = decimal.NewFromInt(15)
	assert.Equal(t, "170", tier.UnitPrice().String())

	tier = PricingTier{Price: decimal.RequireFromString("99.99"), DiscountPercent: decimal.NewFromInt(10)}
	assert.Equal(t, "89.99", tier.UnitPrice().String())
}

func TestPendingOrder_Units(t *testing.T) {
	order := PendingOrder{Lines: []CartLine{{Quantity: 2}, {Quantity: 1}}}

	units := order.Units()
	require.Len(t, units, 3)
	assert.Equal(t, FulfillmentUnit{LineIndex: 0, UnitIndex: 0}, units[0])
	assert.Equal(t, FulfillmentUnit{LineIndex: 0, UnitIndex: 1}, units[1])
	assert.Equal(t, FulfillmentUnit{LineIndex: 1, UnitIndex: 0}, units[2])
}

func TestOrderStatus_Transitions(t *testing.T) {
	assert.True(t, OrderStatusCreated.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusFulfilled))
	assert.True(t, OrderStatusFailed.CanTransitionTo(OrderStatusFulfilled))
	assert.False(t, OrderStatusCreated.CanTransitionTo(OrderStatusFulfilled))
	assert.False(t, OrderStatusFulfilled.CanTransitionTo(OrderStatusFailed))
	assert.True(t, OrderStatusFulfilled.IsTerminal())
	assert.False(t, OrderStatusFailed.IsTerminal())
}

func TestAddMonths(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), AddMonths(start, 1))
	assert.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), AddMonths(start, 12))
}

func TestToday(t *testing.T) {
	ts := time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), Today(ts))
}

func TestNewPaidInvoice(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sub := Subscription{ID: uuid.New(), CustomerID: uuid.New(), FinalPrice: decimal.NewFromInt(50)}

	inv := NewPaidInvoice(sub, day)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, inv.TotalAmount.Equal(inv.Amount))
	assert.Equal(t, day, inv.IssueDate)
	assert.Equal(t, day, inv.DueDate)
	require.NotNil(t, inv.PaidDate)
	assert.Equal(t, day, *inv.PaidDate)
	assert.Equal(t, sub.ID, inv.SubscriptionID)
}

func TestErrorKinds(t *testing.T) {
	var verrs ValidationErrors
	verrs.Add("name", "required")
	assert.True(t, errors.Is(verrs, ErrInvalidInput))
	assert.Equal(t, "required", verrs.GetByField("name"))

	ext := NewExternalServiceError("paypal", "create_order", "bad gateway", 502, nil)
	wrapped := fmt.Errorf("checkout: %w", ext)
	assert.True(t, errors.Is(wrapped, ErrExternalServiceUnavailable))
	assert.True(t, ext.Retryable())
	assert.False(t, NewExternalServiceError("paypal", "x", "bad request", 400, nil).Retryable())

	assert.True(t, errors.Is(NewNotFoundError("order", "1"), ErrNotFound))
	assert.True(t, errors.Is(NewDuplicateError("customer", "email", "a@b.c"), ErrDuplicate))
}
