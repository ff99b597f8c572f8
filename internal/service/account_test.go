package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/repository"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	store := repository.NewMemory()
	svc := NewAccountService(store, zap.NewNop())

	account, err := svc.Register(context.Background(), "chicken", "chicken@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
	assert.NotEqual(t, "hunter2hunter2", account.PasswordHash)

	got, err := svc.Authenticate(context.Background(), "chicken", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "chicken", "wrong-password")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "hunter2hunter2")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	store := repository.NewMemory()
	svc := NewAccountService(store, zap.NewNop())

	_, err := svc.Register(context.Background(), "ab", "a@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Register(context.Background(), "chicken", "not-an-email", "hunter2hunter2")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Register(context.Background(), "chicken", "a@example.com", "short")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRegisterDuplicates(t *testing.T) {
	store := repository.NewMemory()
	svc := NewAccountService(store, zap.NewNop())

	_, err := svc.Register(context.Background(), "chicken", "chicken@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "CHICKEN", "other@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = svc.Register(context.Background(), "rooster", "Chicken@Example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestHistoryCollectsAccountActivity(t *testing.T) {
	store := repository.NewMemory()
	accounts := NewAccountService(store, zap.NewNop())
	topups := NewTopUpService(store, testPolicy(), zap.NewNop())
	orders := NewOrderService(store, testCatalog(), zap.NewNop())

	account, err := accounts.Register(context.Background(), "chicken", "chicken@example.com", "hunter2hunter2")
	require.NoError(t, err)

	req, err := topups.Create(context.Background(), account.ID, domain.MethodCard, 100000)
	require.NoError(t, err)
	_, err = topups.Resolve(context.Background(), req.ID, domain.DecisionApprove, "")
	require.NoError(t, err)

	_, err = orders.Purchase(context.Background(), account.ID, "boost-likes", "")
	require.NoError(t, err)

	history, err := accounts.History(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, history.TopUps, 1)
	assert.Len(t, history.Orders, 1)
	assert.Len(t, history.Journal, 2)
}

func TestDeleteAccountCascades(t *testing.T) {
	store := repository.NewMemory()
	accounts := NewAccountService(store, zap.NewNop())
	topups := NewTopUpService(store, testPolicy(), zap.NewNop())

	account, err := accounts.Register(context.Background(), "chicken", "chicken@example.com", "hunter2hunter2")
	require.NoError(t, err)
	req, err := topups.Create(context.Background(), account.ID, domain.MethodCard, 20000)
	require.NoError(t, err)

	require.NoError(t, accounts.Delete(context.Background(), account.ID))

	_, err = accounts.Get(context.Background(), account.ID)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	_, err = store.GetTopUp(context.Background(), req.ID)
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}
