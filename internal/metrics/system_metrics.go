package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PoolStats снимок пула соединений одного хранилища
type PoolStats struct {
	Total int
	Idle  int
	InUse int
}

// PoolSource возвращает текущее состояние пула: postgres, reporting, redis
type PoolSource func() PoolStats

// SystemMetrics периодически снимает состояние процесса и пулов соединений
type SystemMetrics interface {
	Sample()
	StartRecording(interval time.Duration)
	Stop()
}

type systemMetrics struct {
	log   *logger.Logger
	pools map[string]PoolSource

	goroutines  prometheus.Gauge
	heapInUse   prometheus.Gauge
	gcCycles    prometheus.Counter
	connections *prometheus.GaugeVec

	mu        sync.Mutex
	lastNumGC uint32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewSystemMetrics регистрирует метрики процесса и пулов хранилищ
func NewSystemMetrics(registry *prometheus.Registry, log *logger.Logger, pools map[string]PoolSource) SystemMetrics {
	factory := promauto.With(registry)
	return &systemMetrics{
		log:   log,
		pools: pools,
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subscription_commerce_goroutines",
			Help: "Goroutines running in the commerce backend",
		}),
		heapInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subscription_commerce_heap_inuse_bytes",
			Help: "Heap bytes in use by the commerce backend",
		}),
		gcCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "subscription_commerce_gc_cycles_total",
			Help: "Completed garbage collection cycles",
		}),
		connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subscription_commerce_store_connections",
			Help: "Connections held by each storage pool",
		}, []string{"store", "state"}),
		stopCh: make(chan struct{}),
	}
}

// Sample снимает один замер
func (m *systemMetrics) Sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.heapInUse.Set(float64(ms.HeapInuse))

	m.mu.Lock()
	if ms.NumGC > m.lastNumGC {
		m.gcCycles.Add(float64(ms.NumGC - m.lastNumGC))
		m.lastNumGC = ms.NumGC
	}
	m.mu.Unlock()

	for store, source := range m.pools {
		stats := source()
		m.connections.WithLabelValues(store, "total").Set(float64(stats.Total))
		m.connections.WithLabelValues(store, "idle").Set(float64(stats.Idle))
		m.connections.WithLabelValues(store, "in_use").Set(float64(stats.InUse))
	}
}

// StartRecording снимает замер сразу и затем с заданным интервалом
func (m *systemMetrics) StartRecording(interval time.Duration) {
	m.Sample()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Sample()
			case <-m.stopCh:
				return
			}
		}
	}()
	m.log.Infow("Runtime and pool metrics recording started", "interval", interval.String(), "pools", len(m.pools))
}

// Stop останавливает запись; повторный вызов ничего не делает
func (m *systemMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.log.Info("Runtime and pool metrics recording stopped")
	})
}
