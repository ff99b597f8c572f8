package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	topUpResolutionCounter  *prometheus.CounterVec
	balanceRejectionCounter prometheus.Counter
	ledgerImbalanceCounter  prometheus.Counter
	pendingTopUpQueueGauge  prometheus.Gauge
	workerRunCounter        *prometheus.CounterVec
	idempotencyCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		topUpResolutionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topup_resolutions_total",
			Help: "Admin top-up decisions by outcome",
		}, []string{"decision"})

		balanceRejectionCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "purchase_insufficient_balance_total",
			Help: "Purchases rejected for insufficient balance",
		})

		ledgerImbalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of accounts whose balance diverged from the journal",
		})

		pendingTopUpQueueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topup_pending_queue_size",
			Help: "Current number of top-up requests waiting for admin review",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpDurationHistogram,
			topUpResolutionCounter,
			balanceRejectionCounter,
			ledgerImbalanceCounter,
			pendingTopUpQueueGauge,
			workerRunCounter,
			idempotencyCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTopUpResolution(decision string) {
	if topUpResolutionCounter == nil {
		return
	}
	topUpResolutionCounter.WithLabelValues(decision).Inc()
}

func IncrementBalanceRejection() {
	if balanceRejectionCounter == nil {
		return
	}
	balanceRejectionCounter.Inc()
}

func IncrementLedgerImbalance() {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.Inc()
}

func SetPendingTopUpQueueSize(size int) {
	if pendingTopUpQueueGauge == nil {
		return
	}
	pendingTopUpQueueGauge.Set(float64(size))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}
