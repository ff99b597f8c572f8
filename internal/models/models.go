package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Balance      int64     `json:"balance"` // smallest currency unit, never negative
	CreatedAt    time.Time `json:"created_at"`
}

type TopUpRequest struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Method        string          `json:"method"` // "bank_transfer" or "card"
	Amount        int64           `json:"amount"`
	FeeRate       decimal.Decimal `json:"fee_rate"`
	NetCredit     int64           `json:"net_credit"` // fixed at creation, applied verbatim on approval
	ReferenceCode string          `json:"reference_code"`
	Status        string          `json:"status"` // "pending", "approved", "rejected"
	AdminNote     string          `json:"admin_note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

type Order struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	ServiceID string    `json:"service_id"`
	Price     int64     `json:"price"` // snapshot of the catalog price at purchase time
	Note      string    `json:"note,omitempty"`
	Status    string    `json:"status"` // "created", "in_progress", "done", "cancelled"
	AdminNote string    `json:"admin_note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is a catalog entry. The catalog is process-wide configuration and
// read-only to the rest of the system.
type Service struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Active bool   `json:"active"`
}

// JournalEntry records a single balance mutation. Every credit and debit
// writes one in the same transaction as the balance update, so the sum of an
// account's entries always equals its balance.
type JournalEntry struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"` // positive for credit, negative for debit
	Kind      string    `json:"kind"`   // "topup_credit" or "order_debit"
	RefID     uuid.UUID `json:"ref_id"` // the top-up request or order this posts for
	CreatedAt time.Time `json:"created_at"`
}
