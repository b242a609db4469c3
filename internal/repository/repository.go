// Package repository описывает хранилища данных сервиса и их реализации в памяти.
// Реализации для PostgreSQL находятся в подпакете postgres.
package repository

import (
	"context"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerRepository интерфейс для работы с клиентами
type CustomerRepository interface {
	identity.Index
	GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	Create(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	Update(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	LinkAuthAccount(ctx context.Context, id uuid.UUID, authUserID, phoneAuth string) error
}

// CatalogRepository справочник продуктов и тарифов (только чтение)
type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetTier(ctx context.Context, tierID uuid.UUID) (domain.Product, domain.PricingTier, error)
}

// OrderRepository ожидающие заказы и журнал выполнения
type OrderRepository interface {
	CreatePendingOrder(ctx context.Context, order domain.PendingOrder) error
	GetPendingOrder(ctx context.Context, token uuid.UUID) (domain.PendingOrder, error)
	UpdateOrderStatus(ctx context.Context, token uuid.UUID, status domain.OrderStatus) error
	SetProviderOrderID(ctx context.Context, token uuid.UUID, providerOrderID string) error
	ListFulfillment(ctx context.Context, token uuid.UUID) ([]domain.FulfillmentRecord, error)
	// ActivateUnit атомарно сохраняет подписку, счет и запись журнала.
	// Возвращает ErrDuplicate, если единица уже активирована.
	ActivateUnit(ctx context.Context, token uuid.UUID, unit domain.FulfillmentUnit, sub domain.Subscription, inv domain.Invoice) (domain.FulfillmentRecord, error)
}

// SubscriptionRepository подписки, счета и заявки клиентов
type SubscriptionRepository interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error)
	ListInvoicesByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Invoice, error)
	ListExpiring(ctx context.Context, from, to time.Time) ([]domain.ExpiringSubscription, error)
	CreateRequest(ctx context.Context, req domain.SubscriptionRequest) (domain.SubscriptionRequest, error)
}

// NotificationLogRepository журнал отправленных уведомлений
type NotificationLogRepository interface {
	WasNotified(ctx context.Context, subscriptionID uuid.UUID, day time.Time) (bool, error)
	// Record возвращает ErrDuplicate, если запись за этот день уже есть
	Record(ctx context.Context, entry domain.NotificationLog) error
}

// Page параметры постраничной выборки
type Page struct {
	Limit  int
	Offset int
}

// DateRange необязательный диапазон дат (включительно)
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains попадает ли дата в диапазон
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// CustomerFilter фильтр клиентов; Subscribed == nil означает всех
type CustomerFilter struct {
	Subscribed *bool
	Page
}

// SubscriptionFilter фильтр подписок по статусу и дате начала
type SubscriptionFilter struct {
	Status domain.SubscriptionStatus
	Range  DateRange
	Page
}

// InvoiceFilter фильтр счетов по статусу и дате выставления
type InvoiceFilter struct {
	Status domain.InvoiceStatus
	Range  DateRange
	Page
}

// Analytics сводка для внешнего API
type Analytics struct {
	TotalCustomers         int             `json:"total_customers" db:"total_customers"`
	SubscribedCustomers    int             `json:"subscribed_customers" db:"subscribed_customers"`
	ActiveSubscriptions    int             `json:"active_subscriptions" db:"active_subscriptions"`
	ExpiredSubscriptions   int             `json:"expired_subscriptions" db:"expired_subscriptions"`
	CancelledSubscriptions int             `json:"cancelled_subscriptions" db:"cancelled_subscriptions"`
	PaidInvoices           int             `json:"paid_invoices" db:"paid_invoices"`
	PendingInvoices        int             `json:"pending_invoices" db:"pending_invoices"`
	OverdueInvoices        int             `json:"overdue_invoices" db:"overdue_invoices"`
	Revenue                decimal.Decimal `json:"revenue" db:"revenue"`
}

// ReportingRepository выборки для внешнего REST API
type ReportingRepository interface {
	ListCustomers(ctx context.Context, f CustomerFilter) ([]domain.Customer, int, error)
	ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]domain.Subscription, int, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]domain.Invoice, int, error)
	ListProducts(ctx context.Context, p Page) ([]domain.Product, int, error)
	Analytics(ctx context.Context, r DateRange) (Analytics, error)
}
