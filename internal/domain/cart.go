package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine позиция корзины: продукт, тариф и количество
type CartLine struct {
	ProductID      uuid.UUID       `json:"product_id"`
	PricingTierID  uuid.UUID       `json:"pricing_tier_id"`
	ProductName    string          `json:"product_name"`
	TierName       string          `json:"tier_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DurationMonths int             `json:"duration_months"`
	Quantity       int             `json:"quantity"`
}

// Matches совпадает ли позиция с парой (продукт, тариф)
func (l CartLine) Matches(productID, tierID uuid.UUID) bool {
	return l.ProductID == productID && l.PricingTierID == tierID
}

// Subtotal цена позиции
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewCartLine собирает позицию корзины из продукта и тарифа
func NewCartLine(product Product, tier PricingTier, quantity int) CartLine {
	return CartLine{
		ProductID:      product.ID,
		PricingTierID:  tier.ID,
		ProductName:    product.Name,
		TierName:       tier.Name,
		UnitPrice:      tier.UnitPrice(),
		DurationMonths: tier.DurationMonths,
		Quantity:       quantity,
	}
}
