package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/observability"
	"github.com/gashop/shop-ledger/internal/repository"
)

// TopUpPolicy carries the operator-configured rules a deployment applies to
// new top-up requests.
type TopUpPolicy struct {
	CardDenominations []int64
	Fees              domain.FeeSchedule
	BankMinAmount     int64
	BankFeeRate       decimal.Decimal
}

// TopUpService creates top-up requests and applies admin decisions to them.
type TopUpService struct {
	store  repository.Store
	policy TopUpPolicy
	denoms map[int64]struct{}
	log    *zap.Logger
}

func NewTopUpService(store repository.Store, policy TopUpPolicy, log *zap.Logger) *TopUpService {
	denoms := make(map[int64]struct{}, len(policy.CardDenominations))
	for _, d := range policy.CardDenominations {
		denoms[d] = struct{}{}
	}
	return &TopUpService{store: store, policy: policy, denoms: denoms, log: log}
}

// Create validates the amount for the chosen method, fixes the fee rate and
// net credit, and files a pending request. The net credit computed here is
// what approval will pay out, even if the fee table changes in between.
func (s *TopUpService) Create(ctx context.Context, accountID uuid.UUID, method string, amount int64) (*models.TopUpRequest, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	var feeRate decimal.Decimal
	switch method {
	case domain.MethodCard:
		if _, ok := s.denoms[amount]; !ok {
			return nil, fmt.Errorf("%w: %d is not an accepted card denomination", models.ErrInvalidAmount, amount)
		}
		feeRate = s.policy.Fees.CardRate(amount)
	case domain.MethodBankTransfer:
		if amount < s.policy.BankMinAmount {
			return nil, fmt.Errorf("%w: bank transfers start at %d", models.ErrInvalidAmount, s.policy.BankMinAmount)
		}
		feeRate = s.policy.BankFeeRate
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownMethod, method)
	}

	ref, err := domain.NewReferenceCode(method)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reference code: %w", err)
	}

	req := &models.TopUpRequest{
		ID:            uuid.New(),
		AccountID:     accountID,
		Method:        method,
		Amount:        amount,
		FeeRate:       feeRate,
		NetCredit:     domain.NetCredit(amount, feeRate),
		ReferenceCode: ref,
		Status:        domain.TopUpStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertTopUp(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to insert top-up request: %w", err)
	}

	s.log.Info("top-up request created",
		zap.String("request_id", req.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("method", method),
		zap.Int64("amount", amount),
		zap.Int64("net_credit", req.NetCredit))
	return req, nil
}

// Resolution is the outcome of an admin decision on a top-up request.
type Resolution struct {
	Request    *models.TopUpRequest
	NewBalance int64
}

// Resolve applies an admin decision to a pending request. A request is
// resolved at most once: the status check and the balance credit happen in
// the same account transaction, so a second decision for the same request
// always fails with ErrAlreadyResolved and never credits again.
func (s *TopUpService) Resolve(ctx context.Context, requestID uuid.UUID, decision, adminNote string) (*Resolution, error) {
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidDecision, decision)
	}

	located, err := s.store.GetTopUp(ctx, requestID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{}
	err = s.store.InAccountTx(ctx, located.AccountID, func(tx repository.AccountTx) error {
		req, err := tx.GetTopUpForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.TopUpStatusPending {
			return models.ErrAlreadyResolved
		}
		now := time.Now().UTC()

		if decision == domain.DecisionReject {
			if err := tx.ResolveTopUp(ctx, requestID, domain.TopUpStatusRejected, adminNote, now); err != nil {
				return err
			}
			account, err := tx.Account(ctx)
			if err != nil {
				return err
			}
			req.Status = domain.TopUpStatusRejected
			req.AdminNote = adminNote
			req.ResolvedAt = &now
			res.Request = req
			res.NewBalance = account.Balance
			return nil
		}

		newBalance, err := tx.AdjustBalance(ctx, req.NetCredit)
		if err != nil {
			return err
		}
		if err := tx.AppendJournal(ctx, &models.JournalEntry{
			ID:        uuid.New(),
			AccountID: req.AccountID,
			Amount:    req.NetCredit,
			Kind:      domain.JournalKindTopUpCredit,
			RefID:     req.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.ResolveTopUp(ctx, requestID, domain.TopUpStatusApproved, adminNote, now); err != nil {
			return err
		}
		req.Status = domain.TopUpStatusApproved
		req.AdminNote = adminNote
		req.ResolvedAt = &now
		res.Request = req
		res.NewBalance = newBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementTopUpResolution(decision)
	s.log.Info("top-up request resolved",
		zap.String("request_id", requestID.String()),
		zap.String("decision", decision),
		zap.Int64("new_balance", res.NewBalance))
	return res, nil
}

func (s *TopUpService) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]models.TopUpRequest, error) {
	return s.store.ListTopUpsByAccount(ctx, accountID)
}

// ListPending returns the admin review queue and refreshes the queue gauge.
func (s *TopUpService) ListPending(ctx context.Context) ([]models.TopUpRequest, error) {
	pending, err := s.store.ListTopUpsByStatus(ctx, domain.TopUpStatusPending)
	if err != nil {
		return nil, err
	}
	observability.SetPendingTopUpQueueSize(len(pending))
	return pending, nil
}
