package stats_collector

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ipcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipc_requests",
			Help: "Total number of IPC requests by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	writeBehindQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "write_behind_queue_depth",
			Help: "Buffered enqueue calls awaiting flush",
		},
		[]string{"buffer"},
	)
	writeBehindSquashed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "write_behind_squashed",
			Help: "Buffered writes replaced by a newer write for the same key",
		},
		[]string{"buffer"},
	)
	writeBehindWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "write_behind_writes",
			Help: "Entities persisted by flushes",
		},
		[]string{"buffer"},
	)
	writeBehindErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "write_behind_errors",
			Help: "Failed flushes",
		},
		[]string{"buffer"},
	)
	writeBehindBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "write_behind_batches",
			Help: "Successful flushes",
		},
		[]string{"buffer"},
	)
	writeBehindBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "write_behind_batch_size",
			Help:    "Unique entities persisted per flush",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"buffer"},
	)
	writeBehindBatchTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "write_behind_batch_seconds",
			Help:    "Time spent persisting one flush",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"buffer"},
	)
	writeBehindLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "write_behind_latency_seconds",
			Help:    "Time from first enqueue to successful persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"buffer"},
	)
	writeBehindUnsaved = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "write_behind_unsaved",
			Help: "1 when a buffer has repeatedly failed to flush",
		},
		[]string{"buffer"},
	)

	cleanupPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_purged",
			Help: "Soft-deleted rows purged by the cleanup job",
		},
		[]string{"table"},
	)
)

var _ StatsCollector = (*promCollector)(nil)

type promCollector struct {
}

func (col *promCollector) IncIpcRequests(kind, status string) {
	ipcRequests.WithLabelValues(kind, status).Inc()
}

func (col *promCollector) IncWriteBehindSquashed(name string) {
	writeBehindSquashed.WithLabelValues(name).Inc()
}

func (col *promCollector) SetWriteBehindQueueDepth(name string, depth float64) {
	writeBehindQueueDepth.WithLabelValues(name).Set(depth)
}

func (col *promCollector) IncWriteBehindWrites(name string) {
	writeBehindWrites.WithLabelValues(name).Inc()
}

func (col *promCollector) IncWriteBehindErrors(name string) {
	writeBehindErrors.WithLabelValues(name).Inc()
}

func (col *promCollector) IncWriteBehindBatches(name string) {
	writeBehindBatches.WithLabelValues(name).Inc()
}

func (col *promCollector) ObserveWriteBehindBatchSize(name string, size float64) {
	writeBehindBatchSize.WithLabelValues(name).Observe(size)
}

func (col *promCollector) ObserveWriteBehindBatchTime(name string, seconds float64) {
	writeBehindBatchTime.WithLabelValues(name).Observe(seconds)
}

func (col *promCollector) ObserveWriteBehindLatency(name string, seconds float64) {
	writeBehindLatency.WithLabelValues(name).Observe(seconds)
}

func (col *promCollector) SetWriteBehindUnsaved(name string, unsaved bool) {
	var v float64
	if unsaved {
		v = 1
	}
	writeBehindUnsaved.WithLabelValues(name).Set(v)
}

func (col *promCollector) IncCleanupPurged(table string, rows float64) {
	cleanupPurged.WithLabelValues(table).Add(rows)
}

var registerOnce sync.Once

func initPrometheus() {
	prometheus.MustRegister(
		ipcRequests,
		writeBehindQueueDepth, writeBehindSquashed, writeBehindWrites, writeBehindErrors,
		writeBehindBatches, writeBehindBatchSize, writeBehindBatchTime, writeBehindLatency,
		writeBehindUnsaved,
		cleanupPurged,
	)
}

func NewPrometheusCollector() StatsCollector {
	registerOnce.Do(initPrometheus)
	return &promCollector{}
}
