// Package payment описывает генерацию ссылок на оплату у внешнего провайдера
// и пересчет суммы корзины в валюту расчетов.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultRate приблизительный курс SAR -> USD, показывается пользователю как ориентир
var DefaultRate = decimal.RequireFromString("0.27")

// LinkRequest параметры заказа у провайдера
type LinkRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReferenceID string
	ReturnURL   string
	CancelURL   string
}

// Link ссылка на страницу оплаты провайдера
type Link struct {
	URL             string `json:"url"`
	ProviderOrderID string `json:"provider_order_id"`
}

// LinkGenerator создает ссылку на оплату. Ошибка означает, что списание не инициировано.
type LinkGenerator interface {
	CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error)
}

// Capturer подтверждает (capture) оплаченный заказ после возврата пользователя
type Capturer interface {
	CaptureOrder(ctx context.Context, providerOrderID string) error
}

// Converter пересчитывает сумму по фиксированному курсу
type Converter struct {
	Rate decimal.Decimal
}

// NewConverter создает конвертер; неположительный курс заменяется DefaultRate
func NewConverter(rate decimal.Decimal) Converter {
	if !rate.IsPositive() {
		rate = DefaultRate
	}
	return Converter{Rate: rate}
}

// ToSettlementCurrency amount * rate, округлено до 2 знаков
func (c Converter) ToSettlementCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.Rate).Round(2)
}
