package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/repository"
	"github.com/gashop/shop-ledger/internal/service"
)

func TestWorkerRunsAndStops(t *testing.T) {
	store := repository.NewMemory()
	audit := service.NewReconciliationService(store, zap.NewNop())

	w := NewReconciliationWorker(audit).WithInterval(10 * time.Millisecond)
	stop := w.Run(context.Background())

	time.Sleep(50 * time.Millisecond)
	stop()
	stop() // second call is a no-op
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	store := repository.NewMemory()
	audit := service.NewReconciliationService(store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	w := NewReconciliationWorker(audit).WithInterval(time.Hour)

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "worker did not stop on context cancel")
	}
}
