package repository

import (
	"context"
	"slices"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InMemoryReportingRepository выборки для внешнего API в памяти
type InMemoryReportingRepository struct {
	db  *InMemoryDB
	log *logger.Logger
}

// NewInMemoryReportingRepository создает репозиторий отчетов поверх общего хранилища
func NewInMemoryReportingRepository(db *InMemoryDB, log *logger.Logger) *InMemoryReportingRepository {
	return &InMemoryReportingRepository{db: db, log: log}
}

// subscribedSet клиенты, у которых есть активная подписка; вызывать под блокировкой
func (r *InMemoryReportingRepository) subscribedSet() map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool)
	for _, s := range r.db.subscriptions {
		if s.Status == domain.SubscriptionStatusActive {
			set[s.CustomerID] = true
		}
	}
	return set
}

// ListCustomers клиенты, новые первыми
func (r *InMemoryReportingRepository) ListCustomers(ctx context.Context, f CustomerFilter) ([]domain.Customer, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	subscribed := r.subscribedSet()
	items := make([]domain.Customer, 0)
	for _, c := range r.db.customers {
		if f.Subscribed != nil && subscribed[c.ID] != *f.Subscribed {
			continue
		}
		items = append(items, c)
	}
	slices.SortFunc(items, func(a, b domain.Customer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(items, f.Page), len(items), nil
}

// ListSubscriptions подписки с фильтром по статусу и дате начала
func (r *InMemoryReportingRepository) ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]domain.Subscription, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items := make([]domain.Subscription, 0)
	for _, s := range r.db.subscriptions {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !f.Range.Contains(s.StartDate) {
			continue
		}
		items = append(items, s)
	}
	slices.SortFunc(items, func(a, b domain.Subscription) int {
		if c := b.StartDate.Compare(a.StartDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(items, f.Page), len(items), nil
}

// ListInvoices счета с фильтром по статусу и дате выставления
func (r *InMemoryReportingRepository) ListInvoices(ctx context.Context, f InvoiceFilter) ([]domain.Invoice, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items := make([]domain.Invoice, 0)
	for _, inv := range r.db.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if !f.Range.Contains(inv.IssueDate) {
			continue
		}
		items = append(items, inv)
	}
	slices.SortFunc(items, func(a, b domain.Invoice) int {
		if c := b.IssueDate.Compare(a.IssueDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(items, f.Page), len(items), nil
}

// ListProducts все продукты (включая неактивные) с тарифами
func (r *InMemoryReportingRepository) ListProducts(ctx context.Context, p Page) ([]domain.Product, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items := make([]domain.Product, 0, len(r.db.products))
	for id := range r.db.products {
		items = append(items, r.db.productWithTiers(id, false))
	}
	slices.SortFunc(items, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return paginate(items, p), len(items), nil
}

// Analytics считает сводку; диапазон применяется к дате создания клиента,
// дате начала подписки и дате выставления счета
func (r *InMemoryReportingRepository) Analytics(ctx context.Context, rng DateRange) (Analytics, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var a Analytics
	a.Revenue = decimal.Zero

	subscribed := r.subscribedSet()
	for _, c := range r.db.customers {
		if !rng.Contains(c.CreatedAt) {
			continue
		}
		a.TotalCustomers++
		if subscribed[c.ID] {
			a.SubscribedCustomers++
		}
	}

	for _, s := range r.db.subscriptions {
		if !rng.Contains(s.StartDate) {
			continue
		}
		switch s.Status {
		case domain.SubscriptionStatusActive:
			a.ActiveSubscriptions++
		case domain.SubscriptionStatusExpired:
			a.ExpiredSubscriptions++
		case domain.SubscriptionStatusCancelled:
			a.CancelledSubscriptions++
		}
	}

	for _, inv := range r.db.invoices {
		if !rng.Contains(inv.IssueDate) {
			continue
		}
		switch inv.Status {
		case domain.InvoiceStatusPaid:
			a.PaidInvoices++
			a.Revenue = a.Revenue.Add(inv.TotalAmount)
		case domain.InvoiceStatusPending:
			a.PendingInvoices++
		case domain.InvoiceStatusOverdue:
			a.OverdueInvoices++
		}
	}
	return a, nil
}
