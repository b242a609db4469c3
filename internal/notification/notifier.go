// Package notification уведомляет клиентов о скором окончании подписок.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// DefaultHorizonDays за сколько дней до окончания отправляется письмо
const DefaultHorizonDays = 5

// Статусы результата по подписке
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

const (
	reasonNoEmail         = "no email on file"
	reasonAlreadyNotified = "already notified"
)

// Subscriptions источник истекающих подписок
type Subscriptions interface {
	ListExpiring(ctx context.Context, from, to time.Time) ([]domain.ExpiringSubscription, error)
}

// Journal журнал отправленных уведомлений
type Journal interface {
	WasNotified(ctx context.Context, subscriptionID uuid.UUID, day time.Time) (bool, error)
	Record(ctx context.Context, entry domain.NotificationLog) error
}

// Result итог по одной подписке
type Result struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	CustomerID     uuid.UUID `json:"customerId"`
	Email          string    `json:"email,omitempty"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
}

// Summary ответ задачи уведомлений
type Summary struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Sent    int      `json:"sent"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// ExpiryNotifier отправляет не больше одного письма на подписку в день
type ExpiryNotifier struct {
	subs      Subscriptions
	journal   Journal
	sender    mail.Sender
	publisher kafka.Publisher
	metrics   metrics.CommerceMetrics
	horizon   int
	now       func() time.Time
	log       *logger.Logger
}

// NewExpiryNotifier создает задачу уведомлений. horizonDays <= 0 заменяется на DefaultHorizonDays.
func NewExpiryNotifier(subs Subscriptions, journal Journal, sender mail.Sender, publisher kafka.Publisher, m metrics.CommerceMetrics, horizonDays int, log *logger.Logger) *ExpiryNotifier {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	if m == nil {
		m = metrics.NopMetrics{}
	}
	return &ExpiryNotifier{
		subs:      subs,
		journal:   journal,
		sender:    sender,
		publisher: publisher,
		metrics:   m,
		horizon:   horizonDays,
		now:       time.Now,
		log:       log,
	}
}

// Run обрабатывает активные подписки с датой окончания в [today, today+horizon]
func (n *ExpiryNotifier) Run(ctx context.Context, today time.Time) (Summary, error) {
	day := domain.Today(today)
	until := day.AddDate(0, 0, n.horizon)

	expiring, err := n.subs.ListExpiring(ctx, day, until)
	if err != nil {
		n.log.Errorw("Failed to query expiring subscriptions", "from", day, "to", until, "error", err)
		return Summary{Message: "failed to query expiring subscriptions"}, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}

	summary := Summary{Success: true, Total: len(expiring), Results: make([]Result, 0, len(expiring))}
	for _, sub := range expiring {
		res := n.notify(ctx, day, sub)
		if res.Status == StatusSent {
			summary.Sent++
		}
		summary.Results = append(summary.Results, res)
	}

	summary.Message = fmt.Sprintf("Sent %d notification(s) for %d expiring subscription(s)", summary.Sent, summary.Total)
	n.log.Infow("Expiry notification run finished", "day", day.Format(time.DateOnly), "sent", summary.Sent, "total", summary.Total)
	return summary, nil
}

func (n *ExpiryNotifier) notify(ctx context.Context, day time.Time, sub domain.ExpiringSubscription) Result {
	res := Result{SubscriptionID: sub.ID, CustomerID: sub.CustomerID, Email: sub.CustomerEmail}

	if sub.CustomerEmail == "" {
		n.log.Infow("Skipping subscription without customer email", "subscriptionID", sub.ID, "customerID", sub.CustomerID)
		return n.outcome(res, StatusSkipped, reasonNoEmail)
	}

	notified, err := n.journal.WasNotified(ctx, sub.ID, day)
	if err != nil {
		n.log.Errorw("Failed to check notification log", "subscriptionID", sub.ID, "error", err)
		return n.outcome(res, StatusFailed, err.Error())
	}
	if notified {
		return n.outcome(res, StatusSkipped, reasonAlreadyNotified)
	}

	if err := n.sender.Send(ctx, compose(sub, day)); err != nil {
		n.log.Errorw("Failed to send expiry notification", "subscriptionID", sub.ID, "email", sub.CustomerEmail, "error", err)
		return n.outcome(res, StatusFailed, err.Error())
	}

	err = n.journal.Record(ctx, domain.NotificationLog{
		SubscriptionID: sub.ID,
		Day:            day,
		CustomerID:     sub.CustomerID,
		Email:          sub.CustomerEmail,
		SentAt:         n.now(),
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		// письмо уже ушло, поэтому результат остается sent
		n.log.Errorw("Failed to record notification", "subscriptionID", sub.ID, "error", err)
	}

	if err := n.publisher.PublishNotificationSent(ctx, kafka.NotificationSentEvent{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Email:          sub.CustomerEmail,
		EndDate:        sub.EndDate,
		Timestamp:      n.now(),
	}); err != nil {
		n.log.Warnw("Failed to publish notification sent event", "subscriptionID", sub.ID, "error", err)
	}

	return n.outcome(res, StatusSent, "")
}

func (n *ExpiryNotifier) outcome(res Result, status, reason string) Result {
	res.Status = status
	res.Error = reason
	switch status {
	case StatusSent:
		n.metrics.IncNotification(metrics.OutcomeSuccess)
	case StatusSkipped:
		n.metrics.IncNotification(metrics.OutcomeSkipped)
	default:
		n.metrics.IncNotification(metrics.OutcomeFailed)
	}
	return res
}

// compose письмо на арабском с названием тарифа и датой окончания
func compose(sub domain.ExpiringSubscription, day time.Time) mail.Message {
	daysLeft := int(sub.EndDate.Sub(day).Hours() / 24)
	plan := sub.ProductName
	if sub.TierName != "" {
		plan = fmt.Sprintf("%s - %s", sub.ProductName, sub.TierName)
	}

	body := fmt.Sprintf(
		"مرحباً %s،\n\nنود تذكيرك بأن اشتراكك في %s سينتهي بتاريخ %s (بعد %d يوم).\nيرجى تجديد الاشتراك لتجنب انقطاع الخدمة.\n\nشكراً لك.",
		sub.CustomerName, plan, sub.EndDate.Format(time.DateOnly), daysLeft,
	)
	return mail.Message{
		To:      sub.CustomerEmail,
		ToName:  sub.CustomerName,
		Subject: "تنبيه: اشتراكك على وشك الانتهاء",
		Body:    body,
	}
}
