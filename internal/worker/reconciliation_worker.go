package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/observability"
	"github.com/gashop/shop-ledger/internal/service"
)

// ReconciliationWorker runs periodic ledger audit passes. The startup run
// doubles as crash recovery: if the process died mid-flight, a dirty report
// tells the operator before any new mutations land on top.
type ReconciliationWorker struct {
	svc      *service.ReconciliationService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker constructs a worker with a default daily interval.
func NewReconciliationWorker(svc *service.ReconciliationService) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		interval: 24 * time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and audits the ledger at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	report, err := w.svc.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return
	}
	if !report.Clean() {
		observability.IncrementWorkerRun("reconciliation", "dirty")
		for _, m := range report.BalanceMismatches {
			observability.IncrementLedgerImbalance()
			zap.L().Error("ledger balance mismatch", zap.String("detail", m))
		}
		for _, m := range report.CreditMismatches {
			zap.L().Error("ledger credit mismatch", zap.String("detail", m))
		}
		return
	}
	observability.IncrementWorkerRun("reconciliation", "success")
	zap.L().Info("reconciliation clean",
		zap.Int("accounts_checked", report.AccountsChecked),
		zap.Int("approved_checked", report.ApprovedChecked))
}
