package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gashop/shop-ledger/internal/models"
)

func newTestAccount(t *testing.T, store *Memory, balance int64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:        uuid.New(),
		Username:  "user-" + uuid.NewString()[:8],
		Email:     uuid.NewString()[:8] + "@example.com",
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func TestMemoryCreateAccountUniqueness(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	first := &models.Account{ID: uuid.New(), Username: "nhan", Email: "nhan@example.com"}
	require.NoError(t, store.CreateAccount(ctx, first))

	dupUser := &models.Account{ID: uuid.New(), Username: "NHAN", Email: "other@example.com"}
	assert.ErrorIs(t, store.CreateAccount(ctx, dupUser), models.ErrUsernameTaken)

	dupEmail := &models.Account{ID: uuid.New(), Username: "other", Email: "Nhan@Example.com"}
	assert.ErrorIs(t, store.CreateAccount(ctx, dupEmail), models.ErrEmailTaken)
}

func TestMemoryTxRollbackLeavesNoTrace(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	account := newTestAccount(t, store, 1000)

	err := store.InAccountTx(ctx, account.ID, func(tx AccountTx) error {
		if _, err := tx.AdjustBalance(ctx, -400); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, &models.Order{ID: uuid.New(), AccountID: account.ID, Price: 400}); err != nil {
			return err
		}
		return models.ErrStorage
	})
	require.ErrorIs(t, err, models.ErrStorage)

	reloaded, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), reloaded.Balance)

	orders, err := store.ListOrdersByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMemoryTxSerializesConcurrentDebits(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	account := newTestAccount(t, store, 1000)

	const workers = 20
	var wg sync.WaitGroup
	failures := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.InAccountTx(ctx, account.ID, func(tx AccountTx) error {
				_, err := tx.AdjustBalance(ctx, -100)
				return err
			})
			if err != nil {
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)

	var rejected int
	for err := range failures {
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		rejected++
	}
	// 1000 / 100 = 10 debits fit; the other 10 must be rejected, never
	// driving the balance negative.
	assert.Equal(t, workers-10, rejected)

	reloaded, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.Balance)
}

func TestMemoryDeleteAccountCascades(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	account := newTestAccount(t, store, 500)

	require.NoError(t, store.InsertTopUp(ctx, &models.TopUpRequest{
		ID: uuid.New(), AccountID: account.ID, Amount: 1000, Status: "pending", CreatedAt: time.Now(),
	}))
	require.NoError(t, store.InAccountTx(ctx, account.ID, func(tx AccountTx) error {
		return tx.InsertOrder(ctx, &models.Order{ID: uuid.New(), AccountID: account.ID, Price: 100, CreatedAt: time.Now()})
	}))

	require.NoError(t, store.DeleteAccount(ctx, account.ID))

	_, err := store.GetAccount(ctx, account.ID)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	topups, err := store.ListTopUpsByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, topups)

	orders, err := store.ListOrdersByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	assert.ErrorIs(t, store.DeleteAccount(ctx, account.ID), models.ErrAccountNotFound)
}
