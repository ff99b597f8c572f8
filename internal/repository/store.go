package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gashop/shop-ledger/internal/models"
)

// Store is the durable ledger contract: accounts, top-up requests, orders and
// journal entries, plus a serialized read-modify-write scope per account.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	// DeleteAccount removes the account together with its orders, requests
	// and journal entries.
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	InsertTopUp(ctx context.Context, req *models.TopUpRequest) error
	GetTopUp(ctx context.Context, id uuid.UUID) (*models.TopUpRequest, error)
	ListTopUpsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.TopUpRequest, error)
	ListTopUpsByStatus(ctx context.Context, status string) ([]models.TopUpRequest, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)

	ListJournal(ctx context.Context, accountID uuid.UUID) ([]models.JournalEntry, error)

	// InAccountTx runs fn as a single unit of work against one account. Two
	// concurrent calls for the same account never interleave, and either
	// every mutation made through the AccountTx lands or none does.
	InAccountTx(ctx context.Context, accountID uuid.UUID, fn func(tx AccountTx) error) error
}

// AccountTx is the mutation surface available inside InAccountTx. All reads
// observe the locked state of the account; all writes are applied atomically
// when fn returns nil.
type AccountTx interface {
	Account(ctx context.Context) (*models.Account, error)
	// AdjustBalance applies a signed delta and fails with
	// models.ErrInsufficientBalance if the result would be negative.
	AdjustBalance(ctx context.Context, delta int64) (newBalance int64, err error)

	GetTopUpForUpdate(ctx context.Context, id uuid.UUID) (*models.TopUpRequest, error)
	ResolveTopUp(ctx context.Context, id uuid.UUID, status, adminNote string, resolvedAt time.Time) error

	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, adminNote string, updatedAt time.Time) error

	AppendJournal(ctx context.Context, entry *models.JournalEntry) error
}
