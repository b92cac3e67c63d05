// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Each
// instance carries its own registry so tests can build metrics freely.
type Metrics struct {
	registry *prometheus.Registry

	// RPC metrics
	RPCCallsTotal   *prometheus.CounterVec
	RPCCallLatency  *prometheus.HistogramVec
	RPCRetriesTotal prometheus.Counter
	EndpointsProbed prometheus.Counter

	// Transaction metrics
	TxSubmitted prometheus.Counter
	TxConfirmed prometheus.Counter
	TxReverted  prometheus.Counter
	TxLatency   prometheus.Histogram

	// Indexer metrics
	StoresDiscovered  prometheus.Counter
	PurchasesIngested prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	IndexerErrors     prometheus.Counter
	IndexerHeadBlock  prometheus.Gauge
	IndexerSyncs      *prometheus.CounterVec
	SyncDuration      prometheus.Histogram

	// Health metrics
	LastSuccessfulSync prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics
// registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "block_bazaar"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// RPC metrics
		RPCCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of RPC calls by method and status",
		}, []string{"method", "status"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "retries_total",
			Help:      "Total number of retried RPC calls",
		}),
		EndpointsProbed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "endpoints_probed_total",
			Help:      "Total number of endpoint probes during dial",
		}),

		// Transaction metrics
		TxSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "submitted_total",
			Help:      "Total number of transactions submitted",
		}),
		TxConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "confirmed_total",
			Help:      "Total number of transactions confirmed successfully",
		}),
		TxReverted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "reverted_total",
			Help:      "Total number of transactions that reverted on chain",
		}),
		TxLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to confirmation in seconds",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120},
		}),

		// Indexer metrics
		StoresDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "stores_discovered_total",
			Help:      "Total number of store deployments indexed",
		}),
		PurchasesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "purchases_ingested_total",
			Help:      "Total number of purchase events stored",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of already-indexed events skipped",
		}),
		IndexerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Total number of per-event indexing errors",
		}),
		IndexerHeadBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "head_block",
			Help:      "Highest block number scanned",
		}),
		IndexerSyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "syncs_total",
			Help:      "Total number of sync passes by status",
		}, []string{"status"}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "sync_duration_seconds",
			Help:      "Duration of one sync pass in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Health metrics
		LastSuccessfulSync: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of the last successful indexer sync",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The methods below satisfy the RPC layer's metrics interface, so a
// *Metrics can be passed straight to ethrpc.WithMetrics.

// RecordRPCCall records one RPC call outcome.
func (m *Metrics) RecordRPCCall(method string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RPCCallsTotal.WithLabelValues(method, status).Inc()
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCRetry counts one retried RPC attempt.
func (m *Metrics) RecordRPCRetry() {
	m.RPCRetriesTotal.Inc()
}

// RecordEndpointProbe counts one endpoint probe during dial.
func (m *Metrics) RecordEndpointProbe() {
	m.EndpointsProbed.Inc()
}

// RecordTxSubmitted counts one broadcast transaction.
func (m *Metrics) RecordTxSubmitted() {
	m.TxSubmitted.Inc()
}

// RecordTxConfirmed records one confirmed transaction and its
// confirmation latency.
func (m *Metrics) RecordTxConfirmed(seconds float64) {
	m.TxConfirmed.Inc()
	m.TxLatency.Observe(seconds)
}

// RecordTxReverted counts one transaction that reverted on chain.
func (m *Metrics) RecordTxReverted() {
	m.TxReverted.Inc()
}
