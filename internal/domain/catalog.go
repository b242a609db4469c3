package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product продукт каталога (справочные данные)
type Product struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Active      bool          `json:"active"`
	Tiers       []PricingTier `json:"tiers,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PricingTier ценовой вариант продукта (длительность, цена, скидка)
type PricingTier struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DurationMonths  int             `json:"duration_months"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Features        []string        `json:"features,omitempty"`
	Active          bool            `json:"active"`
}

var hundred = decimal.NewFromInt(100)

// UnitPrice цена одной единицы с учетом скидки, округленная до 2 знаков
func (t PricingTier) UnitPrice() decimal.Decimal {
	if t.DiscountPercent.IsZero() {
		return t.Price.Round(2)
	}
	factor := hundred.Sub(t.DiscountPercent).Div(hundred)
	return t.Price.Mul(factor).Round(2)
}
