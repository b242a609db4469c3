package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// InMemoryOrderRepository ожидающие заказы и журнал выполнения в памяти
type InMemoryOrderRepository struct {
	db  *InMemoryDB
	log *logger.Logger
}

// NewInMemoryOrderRepository создает репозиторий заказов поверх общего хранилища
func NewInMemoryOrderRepository(db *InMemoryDB, log *logger.Logger) *InMemoryOrderRepository {
	return &InMemoryOrderRepository{db: db, log: log}
}

// CreatePendingOrder сохраняет новый заказ
func (r *InMemoryOrderRepository) CreatePendingOrder(ctx context.Context, order domain.PendingOrder) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.orders[order.Token]; exists {
		return domain.NewDuplicateError("pending_order", "token", order.Token.String())
	}
	now := r.db.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Lines = slices.Clone(order.Lines)
	r.db.orders[order.Token] = order
	return nil
}

// GetPendingOrder возвращает заказ по токену
func (r *InMemoryOrderRepository) GetPendingOrder(ctx context.Context, token uuid.UUID) (domain.PendingOrder, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	order, ok := r.db.orders[token]
	if !ok {
		return domain.PendingOrder{}, domain.NewNotFoundError("pending_order", token.String())
	}
	order.Lines = slices.Clone(order.Lines)
	return order, nil
}

// UpdateOrderStatus переводит заказ в новый статус; повтор текущего статуса ничего не меняет
func (r *InMemoryOrderRepository) UpdateOrderStatus(ctx context.Context, token uuid.UUID, status domain.OrderStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	order, ok := r.db.orders[token]
	if !ok {
		return domain.NewNotFoundError("pending_order", token.String())
	}
	if order.Status == status {
		return nil
	}
	if !order.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, order.Status, status)
	}
	order.Status = status
	order.UpdatedAt = r.db.now()
	r.db.orders[token] = order
	return nil
}

// SetProviderOrderID запоминает ID заказа у платежного провайдера
func (r *InMemoryOrderRepository) SetProviderOrderID(ctx context.Context, token uuid.UUID, providerOrderID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	order, ok := r.db.orders[token]
	if !ok {
		return domain.NewNotFoundError("pending_order", token.String())
	}
	order.ProviderOrderID = providerOrderID
	order.UpdatedAt = r.db.now()
	r.db.orders[token] = order
	return nil
}

// ListFulfillment возвращает записи журнала по заказу в порядке позиций
func (r *InMemoryOrderRepository) ListFulfillment(ctx context.Context, token uuid.UUID) ([]domain.FulfillmentRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var records []domain.FulfillmentRecord
	for k, rec := range r.db.ledger {
		if k.token == token {
			records = append(records, rec)
		}
	}
	slices.SortFunc(records, func(a, b domain.FulfillmentRecord) int {
		if a.LineIndex != b.LineIndex {
			return a.LineIndex - b.LineIndex
		}
		return a.UnitIndex - b.UnitIndex
	})
	return records, nil
}

// ActivateUnit под одной блокировкой пишет подписку, счет и запись журнала
func (r *InMemoryOrderRepository) ActivateUnit(ctx context.Context, token uuid.UUID, unit domain.FulfillmentUnit, sub domain.Subscription, inv domain.Invoice) (domain.FulfillmentRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := unitKey{token: token, unit: unit}
	if _, done := r.db.ledger[key]; done {
		return domain.FulfillmentRecord{}, domain.NewDuplicateError("fulfillment_unit", "unit", token.String()+"/"+unit.String())
	}
	if _, exists := r.db.subscriptions[sub.ID]; exists {
		return domain.FulfillmentRecord{}, domain.NewDuplicateError("subscription", "id", sub.ID.String())
	}

	now := r.db.now()
	sub.CreatedAt = now
	inv.CreatedAt = now
	inv.SubscriptionID = sub.ID
	r.db.subscriptions[sub.ID] = sub
	r.db.invoices[inv.ID] = inv

	rec := domain.FulfillmentRecord{
		OrderToken:     token,
		LineIndex:      unit.LineIndex,
		UnitIndex:      unit.UnitIndex,
		SubscriptionID: sub.ID,
		InvoiceID:      inv.ID,
		CreatedAt:      now,
	}
	r.db.ledger[key] = rec
	return rec, nil
}
