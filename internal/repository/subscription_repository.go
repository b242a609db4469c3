package repository

import (
	"context"
	"slices"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// SubscriptionRequestPending статус новой заявки
const SubscriptionRequestPending = "pending"

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	db  *InMemoryDB
	log *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(db *InMemoryDB, log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{db: db, log: log}
}

// ListByCustomer возвращает подписки клиента, новые первыми
func (r *InMemorySubscriptionRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	subs := make([]domain.Subscription, 0)
	for _, s := range r.db.subscriptions {
		if s.CustomerID == customerID {
			subs = append(subs, s)
		}
	}
	slices.SortFunc(subs, func(a, b domain.Subscription) int { return b.StartDate.Compare(a.StartDate) })
	return subs, nil
}

// ListInvoicesByCustomer возвращает счета клиента, новые первыми
func (r *InMemorySubscriptionRepository) ListInvoicesByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Invoice, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	invoices := make([]domain.Invoice, 0)
	for _, inv := range r.db.invoices {
		if inv.CustomerID == customerID {
			invoices = append(invoices, inv)
		}
	}
	slices.SortFunc(invoices, func(a, b domain.Invoice) int { return b.IssueDate.Compare(a.IssueDate) })
	return invoices, nil
}

// ListExpiring возвращает активные подписки с датой окончания в [from, to]
func (r *InMemorySubscriptionRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]domain.ExpiringSubscription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := make([]domain.ExpiringSubscription, 0)
	for _, s := range r.db.subscriptions {
		if s.Status != domain.SubscriptionStatusActive || s.EndDate.Before(from) || s.EndDate.After(to) {
			continue
		}
		item := domain.ExpiringSubscription{Subscription: s}
		if c, ok := r.db.customers[s.CustomerID]; ok {
			item.CustomerName = c.Name
			item.CustomerEmail = c.Email
		}
		if t, ok := r.db.tiers[s.PricingTierID]; ok {
			item.TierName = t.Name
			item.ProductName = r.db.products[t.ProductID].Name
		}
		result = append(result, item)
	}
	slices.SortFunc(result, func(a, b domain.ExpiringSubscription) int { return a.EndDate.Compare(b.EndDate) })
	return result, nil
}

// CreateRequest сохраняет заявку клиента со статусом pending
func (r *InMemorySubscriptionRepository) CreateRequest(ctx context.Context, req domain.SubscriptionRequest) (domain.SubscriptionRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.tiers[req.PricingTierID]; !ok {
		return domain.SubscriptionRequest{}, domain.NewNotFoundError("pricing_tier", req.PricingTierID.String())
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = SubscriptionRequestPending
	req.CreatedAt = r.db.now()
	r.db.requests[req.ID] = req
	return req, nil
}
