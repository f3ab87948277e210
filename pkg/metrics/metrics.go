package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet state metrics
	RobotsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_robots_total",
			Help: "Total number of robots by availability",
		},
		[]string{"available"},
	)

	CartsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_carts_total",
			Help: "Total number of carts by availability",
		},
		[]string{"available"},
	)

	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chargepal_jobs_total",
			Help: "Total number of jobs by type and state",
		},
		[]string{"type", "state"},
	)

	// Tick metrics
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chargepal_tick_duration_seconds",
			Help:    "Time taken to run one full planner tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chargepal_ticks_total",
			Help: "Total number of planner ticks completed",
		},
	)

	TickPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chargepal_tick_panics_total",
			Help: "Total number of planner ticks that recovered from a panic",
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chargepal_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation step in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BookingsChangedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chargepal_bookings_changed_total",
			Help: "Total number of booking rows reported changed by the Reconciler",
		},
	)

	// Scheduler metrics
	SchedulingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chargepal_scheduling_duration_seconds",
			Help:    "Time taken to run one ScheduleTick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_jobs_scheduled_total",
			Help: "Total number of jobs bound to resources, by type",
		},
		[]string{"type"},
	)

	SchedulingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_scheduling_failures_total",
			Help: "Total number of jobs left open for retry, by type and reason",
		},
		[]string{"type", "reason"},
	)

	// Station picker metrics
	StationPickerExhaustionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_station_picker_exhaustions_total",
			Help: "Total number of SearchFreeStation calls that found no free station, by prefix",
		},
		[]string{"prefix"},
	)

	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chargepal_rpc_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chargepal_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RequestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chargepal_request_queue_depth",
			Help: "Number of callbacks queued in RequestQueue, as last sampled by the metrics collector",
		},
	)
)

func init() {
	prometheus.MustRegister(RobotsTotal)
	prometheus.MustRegister(CartsTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TickPanicsTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(BookingsChangedTotal)
	prometheus.MustRegister(SchedulingDuration)
	prometheus.MustRegister(JobsScheduledTotal)
	prometheus.MustRegister(SchedulingFailuresTotal)
	prometheus.MustRegister(StationPickerExhaustionsTotal)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
	prometheus.MustRegister(RequestQueueDepth)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
