package cart

import (
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity наибольшее количество единиц в одной позиции
const MaxLineQuantity = 100

// Cart корзина сессии. Позиции уникальны по паре (продукт, тариф).
type Cart struct {
	Lines []domain.CartLine `json:"lines"`
}

// AddToCart добавляет qty единиц тарифа. Если позиция уже есть, количество суммируется.
// Итог позиции не может превышать MaxLineQuantity.
func (c *Cart) AddToCart(product domain.Product, tier domain.PricingTier, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidInput, qty)
	}
	for i := range c.Lines {
		if c.Lines[i].Matches(product.ID, tier.ID) {
			if qty > MaxLineQuantity-c.Lines[i].Quantity {
				return fmt.Errorf("%w: quantity for one line must not exceed %d", domain.ErrInvalidInput, MaxLineQuantity)
			}
			c.Lines[i].Quantity += qty
			return nil
		}
	}
	if qty > MaxLineQuantity {
		return fmt.Errorf("%w: quantity for one line must not exceed %d, got %d", domain.ErrInvalidInput, MaxLineQuantity, qty)
	}
	c.Lines = append(c.Lines, domain.NewCartLine(product, tier, qty))
	return nil
}

// UpdateQuantity перезаписывает количество позиции; qty <= 0 удаляет ее.
func (c *Cart) UpdateQuantity(productID, tierID uuid.UUID, qty int) error {
	if qty <= 0 {
		c.RemoveFromCart(productID, tierID)
		return nil
	}
	if qty > MaxLineQuantity {
		return fmt.Errorf("%w: quantity for one line must not exceed %d, got %d", domain.ErrInvalidInput, MaxLineQuantity, qty)
	}
	for i := range c.Lines {
		if c.Lines[i].Matches(productID, tierID) {
			c.Lines[i].Quantity = qty
			return nil
		}
	}
	return domain.NewNotFoundError("cart line", productID.String()+"/"+tierID.String())
}

// RemoveFromCart удаляет позицию, если она есть
func (c *Cart) RemoveFromCart(productID, tierID uuid.UUID) {
	kept := c.Lines[:0]
	for _, line := range c.Lines {
		if !line.Matches(productID, tierID) {
			kept = append(kept, line)
		}
	}
	c.Lines = kept
}

// Clear очищает корзину
func (c *Cart) Clear() {
	c.Lines = nil
}

// Total сумма unit_price * quantity по всем позициям
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ItemCount общее количество единиц
func (c Cart) ItemCount() int {
	n := 0
	for _, line := range c.Lines {
		n += line.Quantity
	}
	return n
}

// IsEmpty в корзине нет позиций
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Snapshot копия позиций, не разделяющая память с корзиной
func (c Cart) Snapshot() []domain.CartLine {
	out := make([]domain.CartLine, len(c.Lines))
	copy(out, c.Lines)
	return out
}
