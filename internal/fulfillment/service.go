// Package fulfillment превращает оплаченный заказ в подписки и счета.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/payment"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// maxUnitAttempts попыток активации одной единицы заказа
const maxUnitAttempts = 3

// OrderStore ожидающие заказы и журнал выполнения
type OrderStore interface {
	GetPendingOrder(ctx context.Context, token uuid.UUID) (domain.PendingOrder, error)
	UpdateOrderStatus(ctx context.Context, token uuid.UUID, status domain.OrderStatus) error
	ListFulfillment(ctx context.Context, token uuid.UUID) ([]domain.FulfillmentRecord, error)
	ActivateUnit(ctx context.Context, token uuid.UUID, unit domain.FulfillmentUnit, sub domain.Subscription, inv domain.Invoice) (domain.FulfillmentRecord, error)
}

// Result итог выполнения заказа
type Result struct {
	OrderID       string             `json:"order_id"`
	Token         uuid.UUID          `json:"token"`
	Status        domain.OrderStatus `json:"status"`
	Activated     int                `json:"activated"`
	Total         int                `json:"total"`
	Failed        int                `json:"failed"`
	Subscriptions []uuid.UUID        `json:"subscriptions"`
	SessionID     string             `json:"-"`
}

// Complete все единицы заказа активированы
func (r Result) Complete() bool {
	return r.Total > 0 && r.Activated == r.Total
}

// Service выполняет заказы. Повторный вызов для того же токена
// дозаписывает только недостающие единицы.
type Service struct {
	orders     OrderStore
	capturer   payment.Capturer
	publisher  kafka.Publisher
	metrics    metrics.CommerceMetrics
	log        *logger.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewService создает сервис выполнения заказов. capturer может быть nil,
// тогда возврат от провайдера считается подтверждением оплаты.
func NewService(orders OrderStore, capturer payment.Capturer, publisher kafka.Publisher, m metrics.CommerceMetrics, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	if m == nil {
		m = metrics.NopMetrics{}
	}
	return &Service{
		orders:    orders,
		capturer:  capturer,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxInterval = 2 * time.Second
			bo.MaxElapsedTime = 10 * time.Second
			return bo
		},
	}
}

// Fulfill создает по одной подписке и оплаченному счету на каждую единицу
// каждой позиции заказа. providerOrderID, если передан, подтверждается у провайдера.
func (s *Service) Fulfill(ctx context.Context, orderToken, providerOrderID string) (Result, error) {
	token, err := uuid.Parse(strings.TrimSpace(orderToken))
	if err != nil {
		s.log.Warnw("Fulfillment requested with invalid order token", "token", orderToken)
		return Result{}, domain.ErrPendingOrderNotFound
	}

	order, err := s.orders.GetPendingOrder(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warnw("Pending order not found", "token", token)
			return Result{}, domain.ErrPendingOrderNotFound
		}
		return Result{}, fmt.Errorf("failed to load pending order: %w", err)
	}

	if order.Status == domain.OrderStatusFulfilled {
		s.log.Infow("Order already fulfilled", "orderID", order.OrderID)
		return s.result(ctx, order)
	}

	if err := s.confirmPayment(ctx, order, providerOrderID); err != nil {
		return Result{OrderID: order.OrderID, Token: token, Status: domain.OrderStatusFailed, Total: len(order.Units()), SessionID: order.SessionID}, err
	}

	ledger, err := s.orders.ListFulfillment(ctx, token)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load fulfillment ledger: %w", err)
	}
	done := make(map[domain.FulfillmentUnit]bool, len(ledger))
	for _, rec := range ledger {
		done[rec.Unit()] = true
	}

	today := domain.Today(s.now())
	for _, unit := range order.Units() {
		if done[unit] {
			s.metrics.IncFulfillmentUnit(metrics.OutcomeSkipped)
			continue
		}

		line := order.Lines[unit.LineIndex]
		rec, sub, err := s.activate(ctx, order, unit, line, today)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// параллельный вызов уже активировал эту единицу
				s.metrics.IncFulfillmentUnit(metrics.OutcomeSkipped)
				continue
			}
			s.metrics.IncFulfillmentUnit(metrics.OutcomeFailed)
			s.log.Errorw("Failed to activate order unit", "orderID", order.OrderID, "unit", unit.String(), "error", err)
			continue
		}

		s.metrics.IncFulfillmentUnit(metrics.OutcomeSuccess)
		s.log.Infow("Subscription activated", "orderID", order.OrderID, "unit", unit.String(),
			"subscriptionID", rec.SubscriptionID, "invoiceID", rec.InvoiceID)
		s.publishActivated(ctx, order, sub, rec)
	}

	res, err := s.result(ctx, order)
	if err != nil {
		return res, err
	}

	if err := s.orders.UpdateOrderStatus(ctx, token, res.Status); err != nil {
		s.log.Errorw("Failed to update order status", "orderID", order.OrderID, "status", res.Status, "error", err)
		return res, fmt.Errorf("failed to update order status: %w", err)
	}
	s.metrics.IncOrderFulfilled(string(res.Status))
	s.publishFulfilled(ctx, order, res)

	if res.Status == domain.OrderStatusFailed {
		s.log.Warnw("Order partially fulfilled", "orderID", order.OrderID, "activated", res.Activated, "total", res.Total)
	} else {
		s.log.Infow("Order fulfilled", "orderID", order.OrderID, "subscriptions", res.Activated)
	}
	return res, nil
}

// confirmPayment подтверждает оплату у провайдера и переводит заказ в paid.
// Списывается только заказ провайдера, сохраненный при создании ссылки.
func (s *Service) confirmPayment(ctx context.Context, order domain.PendingOrder, providerOrderID string) error {
	if s.capturer != nil {
		if err := s.capture(ctx, order, providerOrderID); err != nil {
			s.metrics.IncOrderFulfilled(string(domain.OrderStatusFailed))
			return err
		}
	}

	if order.Status == domain.OrderStatusPaid {
		return nil
	}
	if err := s.orders.UpdateOrderStatus(ctx, order.Token, domain.OrderStatusPaid); err != nil {
		return fmt.Errorf("failed to mark order as paid: %w", err)
	}
	return nil
}

func (s *Service) capture(ctx context.Context, order domain.PendingOrder, received string) error {
	stored := order.ProviderOrderID
	switch {
	case stored == "":
		s.log.Errorw("Pending order has no provider order id", "orderID", order.OrderID, "received", received)
		return fmt.Errorf("%w: order has no provider order id", domain.ErrPaymentFailed)
	case received != "" && received != stored:
		s.log.Warnw("Provider order id differs from the stored one",
			"orderID", order.OrderID, "stored", stored, "received", received)
		return fmt.Errorf("%w: provider order id does not match", domain.ErrPaymentFailed)
	}

	if err := s.capturer.CaptureOrder(ctx, stored); err != nil {
		s.log.Errorw("Failed to capture payment", "orderID", order.OrderID, "providerOrderID", stored, "error", err)
		if order.Status == domain.OrderStatusCreated {
			if uerr := s.orders.UpdateOrderStatus(ctx, order.Token, domain.OrderStatusFailed); uerr != nil {
				s.log.Errorw("Failed to mark order as failed", "orderID", order.OrderID, "error", uerr)
			}
		}
		return fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
	}
	return nil
}

// activate сохраняет подписку, счет и запись журнала, повторяя временные ошибки
func (s *Service) activate(ctx context.Context, order domain.PendingOrder, unit domain.FulfillmentUnit, line domain.CartLine, today time.Time) (domain.FulfillmentRecord, domain.Subscription, error) {
	var sub domain.Subscription
	attempt := 0

	operation := func() (domain.FulfillmentRecord, error) {
		attempt++
		sub = domain.Subscription{
			ID:            uuid.New(),
			CustomerID:    order.CustomerID,
			PricingTierID: line.PricingTierID,
			StartDate:     today,
			EndDate:       domain.AddMonths(today, line.DurationMonths),
			Status:        domain.SubscriptionStatusActive,
			FinalPrice:    line.UnitPrice,
			CreatedAt:     s.now(),
		}
		inv := domain.NewPaidInvoice(sub, today)
		inv.CreatedAt = sub.CreatedAt

		rec, err := s.orders.ActivateUnit(ctx, order.Token, unit, sub, inv)
		if err == nil {
			return rec, nil
		}
		if !retryable(err) {
			return rec, backoff.Permanent(err)
		}
		s.log.Warnw("Retryable error while activating unit", "orderID", order.OrderID, "unit", unit.String(), "attempt", attempt, "error", err)
		return rec, err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxUnitAttempts-1), ctx)
	rec, err := backoff.RetryWithData(operation, bo)
	return rec, sub, err
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// result собирает итог по журналу выполнения
func (s *Service) result(ctx context.Context, order domain.PendingOrder) (Result, error) {
	ledger, err := s.orders.ListFulfillment(ctx, order.Token)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load fulfillment ledger: %w", err)
	}

	res := Result{
		OrderID:       order.OrderID,
		Token:         order.Token,
		Total:         len(order.Units()),
		Subscriptions: make([]uuid.UUID, 0, len(ledger)),
		SessionID:     order.SessionID,
	}
	for _, rec := range ledger {
		res.Subscriptions = append(res.Subscriptions, rec.SubscriptionID)
	}
	res.Activated = len(ledger)
	res.Failed = res.Total - res.Activated

	res.Status = domain.OrderStatusFailed
	if res.Complete() {
		res.Status = domain.OrderStatusFulfilled
	}
	return res, nil
}

func (s *Service) publishActivated(ctx context.Context, order domain.PendingOrder, sub domain.Subscription, rec domain.FulfillmentRecord) {
	err := s.publisher.PublishSubscriptionActivated(ctx, kafka.SubscriptionActivatedEvent{
		SubscriptionID: rec.SubscriptionID,
		InvoiceID:      rec.InvoiceID,
		CustomerID:     order.CustomerID,
		PricingTierID:  sub.PricingTierID,
		OrderID:        order.OrderID,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
		FinalPrice:     sub.FinalPrice,
		Timestamp:      s.now(),
	})
	if err != nil {
		s.log.Warnw("Failed to publish subscription activated event", "subscriptionID", rec.SubscriptionID, "error", err)
	}
}

func (s *Service) publishFulfilled(ctx context.Context, order domain.PendingOrder, res Result) {
	err := s.publisher.PublishOrderFulfilled(ctx, kafka.OrderFulfilledEvent{
		OrderID:    order.OrderID,
		Token:      order.Token,
		CustomerID: order.CustomerID,
		Status:     string(res.Status),
		Activated:  res.Activated,
		Total:      res.Total,
		Failed:     res.Failed,
		Amount:     order.Total,
		Currency:   order.SourceCurrency,
		Timestamp:  s.now(),
	})
	if err != nil {
		s.log.Warnw("Failed to publish order fulfilled event", "orderID", order.OrderID, "error", err)
	}
}
