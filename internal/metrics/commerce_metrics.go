package metrics

import (
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы операций, используемые как значения меток
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// CommerceMetrics интерфейс для метрик оформления и выполнения заказов
type CommerceMetrics interface {
	IncCheckoutStep(from, to string)
	IncPaymentLinkCreated(provider, currency string)
	IncPaymentLinkFailed(provider, currency string)
	ObservePaymentAmount(amount float64, currency string)
	IncFulfillmentUnit(outcome string)
	IncOrderFulfilled(status string)
	IncNotification(outcome string)
	IncProvisioning(outcome string)
}

type commerceMetrics struct {
	log              *logger.Logger
	checkoutSteps    *prometheus.CounterVec
	paymentLinks     *prometheus.CounterVec
	paymentsAmount   *prometheus.HistogramVec
	fulfillmentUnits *prometheus.CounterVec
	ordersFulfilled  *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	provisioning     *prometheus.CounterVec
}

// NewCommerceMetrics создает и регистрирует метрики заказов
func NewCommerceMetrics(registry *prometheus.Registry, log *logger.Logger) CommerceMetrics {
	factory := promauto.With(registry)

	return &commerceMetrics{
		log: log,
		checkoutSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_step_transitions_total",
				Help: "The total number of checkout step transitions",
			},
			[]string{"from", "to"},
		),
		paymentLinks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_links_total",
				Help: "The total number of payment link requests by outcome",
			},
			[]string{"provider", "currency", "outcome"},
		),
		paymentsAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_link_amount",
				Help:    "Settlement amounts of created payment links",
				Buckets: prometheus.ExponentialBuckets(10, 10, 5), // 10, 100, 1000, 10000, 100000
			},
			[]string{"currency"},
		),
		fulfillmentUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_units_total",
				Help: "The total number of order units processed by fulfillment",
			},
			[]string{"outcome"},
		),
		ordersFulfilled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_fulfillment_total",
				Help: "The total number of fulfillment runs by resulting order status",
			},
			[]string{"status"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiry_notifications_total",
				Help: "The total number of expiry notifications by outcome",
			},
			[]string{"outcome"},
		),
		provisioning: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_provisioned_total",
				Help: "The total number of account provisioning attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// IncCheckoutStep увеличивает счетчик переходов между шагами оформления
func (m *commerceMetrics) IncCheckoutStep(from, to string) {
	m.checkoutSteps.WithLabelValues(from, to).Inc()
}

// IncPaymentLinkCreated увеличивает счетчик созданных ссылок на оплату
func (m *commerceMetrics) IncPaymentLinkCreated(provider, currency string) {
	m.paymentLinks.WithLabelValues(provider, currency, OutcomeSuccess).Inc()
}

// IncPaymentLinkFailed увеличивает счетчик неудачных запросов ссылки
func (m *commerceMetrics) IncPaymentLinkFailed(provider, currency string) {
	m.paymentLinks.WithLabelValues(provider, currency, OutcomeFailed).Inc()
}

func (m *commerceMetrics) ObservePaymentAmount(amount float64, currency string) {
	m.paymentsAmount.WithLabelValues(currency).Observe(amount)
}

func (m *commerceMetrics) IncFulfillmentUnit(outcome string) {
	m.fulfillmentUnits.WithLabelValues(outcome).Inc()
}

func (m *commerceMetrics) IncOrderFulfilled(status string) {
	m.ordersFulfilled.WithLabelValues(status).Inc()
}

func (m *commerceMetrics) IncNotification(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *commerceMetrics) IncProvisioning(outcome string) {
	m.provisioning.WithLabelValues(outcome).Inc()
}

// NopMetrics ничего не записывает, используется в тестах и CLI
type NopMetrics struct{}

func (NopMetrics) IncCheckoutStep(string, string) {}
func (NopMetrics) IncPaymentLinkCreated(string, string) {}
func (NopMetrics) IncPaymentLinkFailed(string, string) {}
func (NopMetrics) ObservePaymentAmount(float64, string) {}
func (NopMetrics) IncFulfillmentUnit(string) {}
func (NopMetrics) IncOrderFulfilled(string) {}
func (NopMetrics) IncNotification(string) {}
func (NopMetrics) IncProvisioning(string) {}
