package metrics

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommerceMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCommerceMetrics(registry, logger.NewNop()).(*commerceMetrics)

	m.IncCheckoutStep("review", "customer")
	m.IncCheckoutStep("review", "customer")
	m.IncPaymentLinkCreated("paypal", "USD")
	m.IncPaymentLinkFailed("paypal", "USD")
	m.IncFulfillmentUnit(OutcomeSuccess)
	m.IncFulfillmentUnit(OutcomeSkipped)
	m.IncOrderFulfilled("fulfilled")
	m.IncNotification(OutcomeFailed)
	m.IncProvisioning(OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkoutSteps.WithLabelValues("review", "customer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentLinks.WithLabelValues("paypal", "USD", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentLinks.WithLabelValues("paypal", "USD", OutcomeFailed)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.fulfillmentUnits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersFulfilled.WithLabelValues("fulfilled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.provisioning.WithLabelValues(OutcomeSuccess)))
}

func TestCommerceMetrics_PaymentAmount(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCommerceMetrics(registry, logger.NewNop())

	m.ObservePaymentAmount(27, "USD")

	expected := `
# HELP payment_link_amount Settlement amounts of created payment links
# TYPE payment_link_amount histogram
payment_link_amount_bucket{currency="USD",le="10"} 0
payment_link_amount_bucket{currency="USD",le="100"} 1
payment_link_amount_bucket{currency="USD",le="1000"} 1
payment_link_amount_bucket{currency="USD",le="10000"} 1
payment_link_amount_bucket{currency="USD",le="100000"} 1
payment_link_amount_bucket{currency="USD",le="+Inf"} 1
payment_link_amount_sum{currency="USD"} 27
payment_link_amount_count{currency="USD"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "payment_link_amount"))
}

func TestSystemMetrics_Sample(t *testing.T) {
	registry := prometheus.NewRegistry()
	pools := map[string]PoolSource{
		"postgres": func() PoolStats { return PoolStats{Total: 10, Idle: 7, InUse: 3} },
		"redis":    func() PoolStats { return PoolStats{Total: 4, Idle: 4} },
	}
	m := NewSystemMetrics(registry, logger.NewNop(), pools).(*systemMetrics)

	m.Sample()
	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.heapInUse), 0.0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.connections.WithLabelValues("postgres", "in_use")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.connections.WithLabelValues("postgres", "idle")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.connections.WithLabelValues("redis", "total")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connections.WithLabelValues("redis", "in_use")))

	// счетчик сборок не пересчитывает уже учтенные циклы
	runtime.GC()
	m.Sample()
	first := testutil.ToFloat64(m.gcCycles)
	m.Sample()
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.gcCycles), first)
	assert.LessOrEqual(t, testutil.ToFloat64(m.gcCycles), float64(m.lastNumGC))

	m.StartRecording(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestNopMetrics(t *testing.T) {
	var m CommerceMetrics = NopMetrics{}
	m.IncCheckoutStep("a", "b")
	m.ObservePaymentAmount(1, "USD")
}
