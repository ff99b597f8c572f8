package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/repository"
)

func TestReconciliationCleanAfterNormalActivity(t *testing.T) {
	store := repository.NewMemory()
	accounts := NewAccountService(store, zap.NewNop())
	topups := NewTopUpService(store, testPolicy(), zap.NewNop())
	orders := NewOrderService(store, testCatalog(), zap.NewNop())
	audit := NewReconciliationService(store, zap.NewNop())

	account, err := accounts.Register(context.Background(), "chicken", "chicken@example.com", "hunter2hunter2")
	require.NoError(t, err)

	req, err := topups.Create(context.Background(), account.ID, domain.MethodBankTransfer, 100000)
	require.NoError(t, err)
	_, err = topups.Resolve(context.Background(), req.ID, domain.DecisionApprove, "")
	require.NoError(t, err)

	rejected, err := topups.Create(context.Background(), account.ID, domain.MethodCard, 50000)
	require.NoError(t, err)
	_, err = topups.Resolve(context.Background(), rejected.ID, domain.DecisionReject, "")
	require.NoError(t, err)

	_, err = orders.Purchase(context.Background(), account.ID, "boost-followers", "")
	require.NoError(t, err)

	report, err := audit.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.AccountsChecked)
	assert.Equal(t, 1, report.ApprovedChecked)
}

func TestReconciliationDetectsDivergence(t *testing.T) {
	store := repository.NewMemory()
	audit := NewReconciliationService(store, zap.NewNop())

	account := &models.Account{ID: uuid.New(), Username: "ghost", Email: "ghost@example.com"}
	require.NoError(t, store.CreateAccount(context.Background(), account))

	// credit the balance without a matching journal entry
	err := store.InAccountTx(context.Background(), account.ID, func(tx repository.AccountTx) error {
		_, err := tx.AdjustBalance(context.Background(), 5000)
		return err
	})
	require.NoError(t, err)

	report, err := audit.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Len(t, report.BalanceMismatches, 1)
}

func TestReconciliationDetectsMissingCredit(t *testing.T) {
	store := repository.NewMemory()
	audit := NewReconciliationService(store, zap.NewNop())

	account := &models.Account{ID: uuid.New(), Username: "ghost", Email: "ghost@example.com"}
	require.NoError(t, store.CreateAccount(context.Background(), account))

	// an approved request with no journal entry at all
	req := &models.TopUpRequest{
		ID:        uuid.New(),
		AccountID: account.ID,
		Method:    domain.MethodCard,
		Amount:    20000,
		NetCredit: 16000,
		Status:    domain.TopUpStatusApproved,
	}
	require.NoError(t, store.InsertTopUp(context.Background(), req))

	report, err := audit.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Len(t, report.CreditMismatches, 1)
}
