package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/repository"
)

func testPolicy() TopUpPolicy {
	return TopUpPolicy{
		CardDenominations: []int64{20000, 50000, 100000, 200000, 500000},
		Fees: domain.FeeSchedule{
			LowThreshold:  50000,
			HighThreshold: 100000,
			HighRate:      decimal.RequireFromString("0.20"),
			LowRate:       decimal.RequireFromString("0.10"),
			MidRate:       decimal.RequireFromString("0.15"),
		},
		BankMinAmount: 1000,
		BankFeeRate:   decimal.Zero,
	}
}

func newTestAccount(t *testing.T, store repository.Store, balance int64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:        uuid.New(),
		Username:  "user-" + uuid.NewString()[:8],
		Email:     uuid.NewString()[:8] + "@example.com",
		Balance:   0,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	if balance > 0 {
		err := store.InAccountTx(context.Background(), account.ID, func(tx repository.AccountTx) error {
			if _, err := tx.AdjustBalance(context.Background(), balance); err != nil {
				return err
			}
			return tx.AppendJournal(context.Background(), &models.JournalEntry{
				ID:        uuid.New(),
				AccountID: account.ID,
				Amount:    balance,
				Kind:      domain.JournalKindTopUpCredit,
				RefID:     uuid.New(),
				CreatedAt: time.Now().UTC(),
			})
		})
		require.NoError(t, err)
		account.Balance = balance
	}
	return account
}

func TestTopUpCreateCard(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	req, err := svc.Create(context.Background(), account.ID, domain.MethodCard, 20000)
	require.NoError(t, err)

	assert.Equal(t, domain.TopUpStatusPending, req.Status)
	assert.True(t, req.FeeRate.Equal(decimal.RequireFromString("0.20")))
	assert.Equal(t, int64(16000), req.NetCredit)
	assert.True(t, strings.HasPrefix(req.ReferenceCode, domain.RefPrefixCard))

	// the pending request must not touch the balance
	got, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
}

func TestTopUpCreateCardFeeTiers(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	cases := []struct {
		amount    int64
		netCredit int64
	}{
		{20000, 16000},   // below low threshold, 20%
		{50000, 45000},   // between thresholds, 10%
		{100000, 85000},  // at high threshold, 15%
		{500000, 425000}, // above high threshold, 15%
	}
	for _, tc := range cases {
		req, err := svc.Create(context.Background(), account.ID, domain.MethodCard, tc.amount)
		require.NoError(t, err)
		assert.Equal(t, tc.netCredit, req.NetCredit, "amount %d", tc.amount)
	}
}

func TestTopUpCreateRejectsBadInput(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	_, err := svc.Create(context.Background(), account.ID, domain.MethodCard, 30000)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Create(context.Background(), account.ID, domain.MethodBankTransfer, 999)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Create(context.Background(), account.ID, "paypal", 20000)
	assert.ErrorIs(t, err, models.ErrUnknownMethod)

	_, err = svc.Create(context.Background(), uuid.New(), domain.MethodCard, 20000)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestTopUpBankTransferCreditsFullAmount(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	req, err := svc.Create(context.Background(), account.ID, domain.MethodBankTransfer, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), req.NetCredit)
	assert.True(t, strings.HasPrefix(req.ReferenceCode, domain.RefPrefixBank))

	res, err := svc.Resolve(context.Background(), req.ID, domain.DecisionApprove, "matched statement")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), res.NewBalance)
	assert.Equal(t, domain.TopUpStatusApproved, res.Request.Status)
	require.NotNil(t, res.Request.ResolvedAt)
}

func TestTopUpApproveCreditsExactlyOnce(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	req, err := svc.Create(context.Background(), account.ID, domain.MethodCard, 100000)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), req.ID, domain.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, int64(85000), res.NewBalance)

	// a second decision of either kind must fail and not move the balance
	_, err = svc.Resolve(context.Background(), req.ID, domain.DecisionApprove, "")
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	_, err = svc.Resolve(context.Background(), req.ID, domain.DecisionReject, "")
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	got, err := store.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(85000), got.Balance)

	journal, err := store.ListJournal(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, req.ID, journal[0].RefID)
	assert.Equal(t, int64(85000), journal[0].Amount)
}

func TestTopUpRejectLeavesBalanceUntouched(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	req, err := svc.Create(context.Background(), account.ID, domain.MethodBankTransfer, 50000)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), req.ID, domain.DecisionReject, "no matching transfer")
	require.NoError(t, err)
	assert.Equal(t, domain.TopUpStatusRejected, res.Request.Status)
	assert.Equal(t, "no matching transfer", res.Request.AdminNote)
	assert.Equal(t, int64(0), res.NewBalance)

	// rejection is terminal
	_, err = svc.Resolve(context.Background(), req.ID, domain.DecisionApprove, "")
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	journal, err := store.ListJournal(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Empty(t, journal)
}

func TestTopUpResolveValidation(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())

	_, err := svc.Resolve(context.Background(), uuid.New(), "maybe", "")
	assert.ErrorIs(t, err, models.ErrInvalidDecision)

	_, err = svc.Resolve(context.Background(), uuid.New(), domain.DecisionApprove, "")
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestTopUpNetCreditFixedAtCreation(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	req, err := svc.Create(context.Background(), account.ID, domain.MethodCard, 100000)
	require.NoError(t, err)

	// a later fee-table change must not affect the stored request
	other := testPolicy()
	other.Fees.MidRate = decimal.RequireFromString("0.50")
	svc = NewTopUpService(store, other, zap.NewNop())

	res, err := svc.Resolve(context.Background(), req.ID, domain.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, int64(85000), res.NewBalance)
}

func TestTopUpListPending(t *testing.T) {
	store := repository.NewMemory()
	svc := NewTopUpService(store, testPolicy(), zap.NewNop())
	account := newTestAccount(t, store, 0)

	first, err := svc.Create(context.Background(), account.ID, domain.MethodCard, 20000)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), account.ID, domain.MethodCard, 50000)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), first.ID, domain.DecisionReject, "")
	require.NoError(t, err)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}
