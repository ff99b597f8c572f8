package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/repository"
)

// ReconciliationService audits the ledger: every account balance must equal
// the sum of its journal entries, and every approved top-up must have posted
// exactly one credit. Because each balance mutation writes its journal entry
// in the same transaction, a clean run means no credit was lost or doubled
// across restarts.
type ReconciliationService struct {
	store repository.Store
	log   *zap.Logger
}

func NewReconciliationService(store repository.Store, log *zap.Logger) *ReconciliationService {
	return &ReconciliationService{store: store, log: log}
}

// Report summarizes one audit pass.
type Report struct {
	AccountsChecked   int      `json:"accounts_checked"`
	ApprovedChecked   int      `json:"approved_checked"`
	BalanceMismatches []string `json:"balance_mismatches,omitempty"`
	CreditMismatches  []string `json:"credit_mismatches,omitempty"`
}

func (r *Report) Clean() bool {
	return len(r.BalanceMismatches) == 0 && len(r.CreditMismatches) == 0
}

// Run walks all accounts and approved top-ups and reports any divergence.
// It never mutates anything; mismatches are an operator signal, not
// something to silently repair.
func (s *ReconciliationService) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, account := range accounts {
		entries, err := s.store.ListJournal(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list journal for %s: %w", account.ID, err)
		}
		var sum int64
		for _, entry := range entries {
			sum += entry.Amount
		}
		if sum != account.Balance {
			report.BalanceMismatches = append(report.BalanceMismatches,
				fmt.Sprintf("account %s: balance %d, journal sum %d", account.ID, account.Balance, sum))
		}
		report.AccountsChecked++
	}

	approved, err := s.store.ListTopUpsByStatus(ctx, domain.TopUpStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved top-ups: %w", err)
	}
	for _, req := range approved {
		entries, err := s.store.ListJournal(ctx, req.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to list journal for %s: %w", req.AccountID, err)
		}
		credits := 0
		for _, entry := range entries {
			if entry.Kind == domain.JournalKindTopUpCredit && entry.RefID == req.ID {
				credits++
				if entry.Amount != req.NetCredit {
					report.CreditMismatches = append(report.CreditMismatches,
						fmt.Sprintf("request %s: credited %d, expected %d", req.ID, entry.Amount, req.NetCredit))
				}
			}
		}
		if credits != 1 {
			report.CreditMismatches = append(report.CreditMismatches,
				fmt.Sprintf("request %s: %d credit entries, expected 1", req.ID, credits))
		}
		report.ApprovedChecked++
	}

	return report, nil
}
