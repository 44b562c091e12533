package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// HTTPRequestsTotal counts API requests by method, path pattern and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_http_requests_total",
			Help: "HTTP requests processed, by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes per-route latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wayfare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// SettlementsTotal counts settlement attempts by outcome
	// (success, declined, conflict, error).
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_settlements_total",
			Help: "Settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SettlementDuration observes gateway round-trip plus ledger writes.
	SettlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wayfare_settlement_duration_seconds",
			Help:    "End-to-end settlement duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// NotificationsEmitted counts feed writes by scope kind (admin, customer).
	NotificationsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_notifications_emitted_total",
			Help: "Notifications appended to feeds.",
		},
		[]string{"scope_kind"},
	)

	// SyncTasksTotal counts back-office sync jobs by result.
	SyncTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_sync_tasks_total",
			Help: "Back-office sync tasks by result.",
		},
		[]string{"result"},
	)
)

// Register installs all collectors into the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			SettlementsTotal,
			SettlementDuration,
			NotificationsEmitted,
			SyncTasksTotal,
		)
	})
}
