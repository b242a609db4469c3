package repository

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/google/uuid"
)

type unitKey struct {
	token uuid.UUID
	unit  domain.FulfillmentUnit
}

type notificationKey struct {
	subscriptionID uuid.UUID
	day            string
}

// InMemoryDB общее хранилище для всех репозиториев в памяти.
// Один мьютекс позволяет атомарно писать в несколько "таблиц".
type InMemoryDB struct {
	mu            sync.RWMutex
	customers     map[uuid.UUID]domain.Customer
	products      map[uuid.UUID]domain.Product
	tiers         map[uuid.UUID]domain.PricingTier
	subscriptions map[uuid.UUID]domain.Subscription
	invoices      map[uuid.UUID]domain.Invoice
	requests      map[uuid.UUID]domain.SubscriptionRequest
	orders        map[uuid.UUID]domain.PendingOrder
	ledger        map[unitKey]domain.FulfillmentRecord
	notifications map[notificationKey]domain.NotificationLog
	now           func() time.Time
}

// NewInMemoryDB создает пустое хранилище
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		customers:     make(map[uuid.UUID]domain.Customer),
		products:      make(map[uuid.UUID]domain.Product),
		tiers:         make(map[uuid.UUID]domain.PricingTier),
		subscriptions: make(map[uuid.UUID]domain.Subscription),
		invoices:      make(map[uuid.UUID]domain.Invoice),
		requests:      make(map[uuid.UUID]domain.SubscriptionRequest),
		orders:        make(map[uuid.UUID]domain.PendingOrder),
		ledger:        make(map[unitKey]domain.FulfillmentRecord),
		notifications: make(map[notificationKey]domain.NotificationLog),
		now:           time.Now,
	}
}

// SeedProduct добавляет продукт вместе с тарифами (для разработки и тестов)
func (db *InMemoryDB) SeedProduct(p domain.Product) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tiers := p.Tiers
	p.Tiers = nil
	if p.CreatedAt.IsZero() {
		p.CreatedAt = db.now()
	}
	db.products[p.ID] = p
	for _, t := range tiers {
		t.ProductID = p.ID
		db.tiers[t.ID] = t
	}
}

// SeedCustomer добавляет клиента как есть
func (db *InMemoryDB) SeedCustomer(c domain.Customer) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.customers[c.ID] = c
}

// SeedSubscription добавляет подписку как есть
func (db *InMemoryDB) SeedSubscription(s domain.Subscription) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.subscriptions[s.ID] = s
}

// SeedInvoice добавляет счет как есть
func (db *InMemoryDB) SeedInvoice(inv domain.Invoice) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.invoices[inv.ID] = inv
}

// productWithTiers собирает продукт с тарифами; вызывать под блокировкой
func (db *InMemoryDB) productWithTiers(id uuid.UUID, activeOnly bool) domain.Product {
	p := db.products[id]
	for _, t := range db.tiers {
		if t.ProductID != id || (activeOnly && !t.Active) {
			continue
		}
		p.Tiers = append(p.Tiers, t)
	}
	sortTiers(p.Tiers)
	return p
}

func sortTiers(tiers []domain.PricingTier) {
	slices.SortFunc(tiers, func(a, b domain.PricingTier) int {
		if c := a.DurationMonths - b.DurationMonths; c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// paginate возвращает срез страницы; limit <= 0 означает без ограничения
func paginate[T any](items []T, p Page) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	items = items[max(p.Offset, 0):]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}
