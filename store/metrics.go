package store

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// register mirrors pmtiles/server_metrics.go's generic register[K] helper:
// log (not fail) on a duplicate registration, since a process may open more
// than one Facade in tests.
func register[K prometheus.Collector](logger *log.Logger, metric K) K {
	if err := prometheus.Register(metric); err != nil {
		logger.Println(err)
	}
	return metric
}

// metrics holds the façade's own operational counters: txn outcomes/
// latency and cache hit/miss, mirroring server_metrics.go's metrics struct
// shape but for the façade's operations rather than HTTP tile requests.
type metrics struct {
	txns          *prometheus.CounterVec
	txnDuration   prometheus.Histogram
	cacheRequests *prometheus.CounterVec
}

func newMetrics(logger *log.Logger) *metrics {
	const namespace = "memolanes_kernel"
	return &metrics{
		txns: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facade_txns_total",
			Help:      "Primary-store transactions by resulting cache-repair action and outcome.",
		}, []string{"action", "status"})),
		txnDuration: register(logger, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "facade_txn_duration_seconds",
			Help:      "WithTxn wall-clock duration, lock acquisition through commit.",
			Buckets:   prometheus.DefBuckets,
		})),
		cacheRequests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache store lookups by layer kind and hit/miss.",
		}, []string{"layer_kind", "status"})),
	}
}

func (m *metrics) observeTxn(action string, err error, dur time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.txns.WithLabelValues(action, status).Inc()
	m.txnDuration.Observe(dur.Seconds())
}

func (m *metrics) observeCache(layerKind string, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.cacheRequests.WithLabelValues(layerKind, status).Inc()
}
