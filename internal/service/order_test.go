package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/catalog"
	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/repository"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]models.Service{
		{ID: "boost-likes", Name: "Like Boost", Price: 20000, Active: true},
		{ID: "boost-followers", Name: "Follower Boost", Price: 50000, Active: true},
		{ID: "retired", Name: "Old Package", Price: 10000, Active: false},
	})
}

func TestPurchaseDebitsAndSnapshotsPrice(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 60000)

	out, err := svc.Purchase(context.Background(), account.ID, "boost-likes", "please rush")
	require.NoError(t, err)

	assert.Equal(t, int64(40000), out.NewBalance)
	assert.Equal(t, domain.OrderStatusCreated, out.Order.Status)
	assert.Equal(t, int64(20000), out.Order.Price)
	assert.Equal(t, "please rush", out.Order.Note)

	journal, err := store.ListJournal(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, journal, 2) // seed credit + debit
	assert.Equal(t, int64(-20000), journal[1].Amount)
	assert.Equal(t, domain.JournalKindOrderDebit, journal[1].Kind)
	assert.Equal(t, out.Order.ID, journal[1].RefID)
}

func TestPurchaseInsufficientBalanceIsNoOp(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 10000)

	_, err := svc.Purchase(context.Background(), account.ID, "boost-likes", "")
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	got, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.Balance)

	orders, err := store.ListOrdersByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPurchaseUnknownOrInactiveService(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 100000)

	_, err := svc.Purchase(context.Background(), account.ID, "nonsense", "")
	assert.ErrorIs(t, err, models.ErrServiceNotFound)

	_, err = svc.Purchase(context.Background(), account.ID, "retired", "")
	assert.ErrorIs(t, err, models.ErrServiceNotFound)
}

// With a balance that covers exactly one purchase, concurrent attempts must
// produce exactly one order.
func TestPurchaseConcurrentExactlyOne(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 50000)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Purchase(context.Background(), account.ID, "boost-followers", "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.True(t, errors.Is(err, models.ErrInsufficientBalance))
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)

	orders, err := store.ListOrdersByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderStatusTransitions(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 100000)

	out, err := svc.Purchase(context.Background(), account.ID, "boost-likes", "")
	require.NoError(t, err)

	order, err := svc.UpdateStatus(context.Background(), out.Order.ID, domain.OrderStatusInProgress, "working on it")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInProgress, order.Status)
	assert.Equal(t, "working on it", order.AdminNote)

	// empty note keeps the previous one
	order, err = svc.UpdateStatus(context.Background(), out.Order.ID, domain.OrderStatusDone, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDone, order.Status)
	assert.Equal(t, "working on it", order.AdminNote)

	// done is terminal
	_, err = svc.UpdateStatus(context.Background(), out.Order.ID, domain.OrderStatusCancelled, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestOrderStatusRejectsUnknownStatus(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 100000)

	out, err := svc.Purchase(context.Background(), account.ID, "boost-likes", "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), out.Order.ID, "shipped", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), uuid.New(), domain.OrderStatusDone, "")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

// Cancelling an order does not refund: the debit already posted and stays in
// the journal.
func TestOrderCancelDoesNotRefund(t *testing.T) {
	store := repository.NewMemory()
	svc := NewOrderService(store, testCatalog(), zap.NewNop())
	account := newTestAccount(t, store, 20000)

	out, err := svc.Purchase(context.Background(), account.ID, "boost-likes", "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), out.Order.ID, domain.OrderStatusCancelled, "cannot fulfil")
	require.NoError(t, err)

	got, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
}
