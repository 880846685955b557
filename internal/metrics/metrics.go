// Package metrics exposes Prometheus instruments for the reader and the
// ledger transformer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

var (
	// QueriesTotal counts batch queries by kind (find, aggregate), output
	// format (json, ndjson) and outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgeport_queries_total",
			Help: "Total number of batch queries",
		},
		[]string{"kind", "format", "status"},
	)
	// QueryDuration is the time spent serving a batch query.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridgeport_query_duration_seconds",
			Help:    "Batch query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	// QueryDocuments counts documents written to batch responses.
	QueryDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgeport_query_documents_total",
		Help: "Total number of documents returned by batch queries",
	})
	// SubscriptionsActive is the number of open live streams.
	SubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridgeport_subscriptions_active",
		Help: "Number of open live subscriptions",
	})
	// SubscriptionsTotal counts subscription attempts by outcome.
	SubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgeport_subscriptions_total",
			Help: "Total number of live subscription requests",
		},
		[]string{"status"},
	)
	// SubscriptionEvents counts change events forwarded to clients.
	SubscriptionEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgeport_subscription_events_total",
		Help: "Total number of change events sent to live subscribers",
	})
	// LedgerRecords counts ledger records handled by the transformer.
	LedgerRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgeport_ledger_records_total",
			Help: "Total number of ledger records handled by the transformer",
		},
		[]string{"action", "status"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
