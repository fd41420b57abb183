package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics содержит метрики жизненного цикла заказов.
type LifecycleMetrics struct {
	// Счётчики операций
	ordersCreated  prometheus.Counter
	ordersAccepted prometheus.Counter
	ordersRejected prometheus.Counter
	reviewsFailed  prometheus.Counter
	stockRestores  prometheus.Counter

	// Гистограммы времени выполнения
	reviewDuration    prometheus.Histogram
	operationDuration *prometheus.HistogramVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для заказов, находящихся на рассмотрении прямо сейчас
	activeReviews prometheus.Gauge
}

// NewLifecycleMetrics создаёт метрики в регистраторе по умолчанию.
func NewLifecycleMetrics() *LifecycleMetrics {
	return newLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersAccepted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_orders_accepted_total",
			Help: "Total number of orders accepted by manufacturers",
		}),
		ordersRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_orders_rejected_total",
			Help: "Total number of orders rejected by manufacturers",
		}),
		reviewsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_reviews_failed_total",
			Help: "Total number of review operations that ended with an error",
		}),
		stockRestores: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_stock_restores_total",
			Help: "Total number of compensating stock restores",
		}),
		reviewDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "oms_review_duration_seconds",
			Help:    "Duration of order review operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_operation_duration_seconds",
			Help:    "Duration of individual engine operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeReviews: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "oms_active_reviews",
			Help: "Number of review operations currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *LifecycleMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderAccepted увеличивает счётчик принятых заказов.
func (m *LifecycleMetrics) RecordOrderAccepted() {
	m.ordersAccepted.Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых заказов.
func (m *LifecycleMetrics) RecordOrderRejected() {
	m.ordersRejected.Inc()
}

// RecordReviewFailed увеличивает счётчик неудачных рассмотрений.
func (m *LifecycleMetrics) RecordReviewFailed() {
	m.reviewsFailed.Inc()
}

// RecordStockRestore увеличивает счётчик компенсирующих возвратов стока.
func (m *LifecycleMetrics) RecordStockRestore() {
	m.stockRestores.Inc()
}

// RecordReviewStarted увеличивает количество активных рассмотрений.
func (m *LifecycleMetrics) RecordReviewStarted() {
	m.activeReviews.Inc()
}

// RecordReviewFinished уменьшает количество активных рассмотрений.
func (m *LifecycleMetrics) RecordReviewFinished() {
	m.activeReviews.Dec()
}

// RecordReviewDuration записывает время рассмотрения заказа.
func (m *LifecycleMetrics) RecordReviewDuration(duration time.Duration) {
	m.reviewDuration.Observe(duration.Seconds())
}

// RecordOperationDuration записывает время отдельной операции движка.
func (m *LifecycleMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *LifecycleMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LifecycleMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
