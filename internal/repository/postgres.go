package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/models"
)

// Postgres is the durable Store implementation. Per-account serialization
// relies on a row lock (SELECT ... FOR UPDATE) so concurrent approvals or
// purchases against one account queue up instead of losing updates.
type Postgres struct {
	db            *pgxpool.Pool
	retryAttempts int
	retryBackoff  time.Duration
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{
		db:            db,
		retryAttempts: 3,
		retryBackoff:  100 * time.Millisecond,
	}
}

// WithRetryPolicy overrides the bounded retry budget for transient storage
// failures.
func (p *Postgres) WithRetryPolicy(attempts int, backoff time.Duration) *Postgres {
	if attempts > 0 {
		p.retryAttempts = attempts
	}
	p.retryBackoff = backoff
	return p
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_username_key ON accounts (LOWER(username));
CREATE UNIQUE INDEX IF NOT EXISTS accounts_email_key ON accounts (LOWER(email));

CREATE TABLE IF NOT EXISTS topup_requests (
	id UUID PRIMARY KEY,
	account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	method TEXT NOT NULL,
	amount BIGINT NOT NULL,
	fee_rate TEXT NOT NULL,
	net_credit BIGINT NOT NULL,
	reference_code TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	admin_note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	resolved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS topup_requests_account_idx ON topup_requests (account_id);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	service_id TEXT NOT NULL,
	price BIGINT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'created',
	admin_note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS orders_account_idx ON orders (account_id);

CREATE TABLE IF NOT EXISTS journal_entries (
	id UUID PRIMARY KEY,
	account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	amount BIGINT NOT NULL,
	kind TEXT NOT NULL,
	ref_id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS journal_entries_account_idx ON journal_entries (account_id);
`

// EnsureSchema creates the ledger tables if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, username, email, password_hash, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := p.db.Exec(ctx, query,
		account.ID, account.Username, account.Email, account.PasswordHash, account.Balance, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return models.ErrEmailTaken
			}
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

const accountColumns = `id, username, email, password_hash, balance, created_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.Username, &account.Email,
		&account.PasswordHash, &account.Balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER($1)`
	return scanAccount(p.db.QueryRow(ctx, query, username))
}

func (p *Postgres) ListAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Balance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (p *Postgres) InsertTopUp(ctx context.Context, req *models.TopUpRequest) error {
	query := `INSERT INTO topup_requests
		(id, account_id, method, amount, fee_rate, net_credit, reference_code, status, admin_note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := p.db.Exec(ctx, query,
		req.ID, req.AccountID, req.Method, req.Amount, req.FeeRate.String(),
		req.NetCredit, req.ReferenceCode, req.Status, req.AdminNote, req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.ErrAccountNotFound
		}
		return fmt.Errorf("insert top-up request: %w", err)
	}
	return nil
}

const topUpColumns = `id, account_id, method, amount, fee_rate, net_credit, reference_code,
	status, admin_note, created_at, resolved_at`

func scanTopUp(row pgx.Row) (*models.TopUpRequest, error) {
	req := &models.TopUpRequest{}
	var feeRate string
	err := row.Scan(&req.ID, &req.AccountID, &req.Method, &req.Amount, &feeRate,
		&req.NetCredit, &req.ReferenceCode, &req.Status, &req.AdminNote,
		&req.CreatedAt, &req.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRequestNotFound
		}
		return nil, fmt.Errorf("scan top-up request: %w", err)
	}
	req.FeeRate, err = decimal.NewFromString(feeRate)
	if err != nil {
		return nil, fmt.Errorf("parse stored fee rate %q: %w", feeRate, err)
	}
	return req, nil
}

func (p *Postgres) GetTopUp(ctx context.Context, id uuid.UUID) (*models.TopUpRequest, error) {
	query := `SELECT ` + topUpColumns + ` FROM topup_requests WHERE id = $1`
	return scanTopUp(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) ListTopUpsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.TopUpRequest, error) {
	query := `SELECT ` + topUpColumns + ` FROM topup_requests WHERE account_id = $1 ORDER BY created_at DESC`
	return p.queryTopUps(ctx, query, accountID)
}

func (p *Postgres) ListTopUpsByStatus(ctx context.Context, status string) ([]models.TopUpRequest, error) {
	if status == "" {
		return p.queryTopUps(ctx, `SELECT `+topUpColumns+` FROM topup_requests ORDER BY created_at DESC`)
	}
	query := `SELECT ` + topUpColumns + ` FROM topup_requests WHERE status = $1 ORDER BY created_at DESC`
	return p.queryTopUps(ctx, query, status)
}

func (p *Postgres) queryTopUps(ctx context.Context, query string, args ...any) ([]models.TopUpRequest, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list top-up requests: %w", err)
	}
	defer rows.Close()

	var out []models.TopUpRequest
	for rows.Next() {
		req, err := scanTopUp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

const orderColumns = `id, account_id, service_id, price, note, status, admin_note, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(&order.ID, &order.AccountID, &order.ServiceID, &order.Price,
		&order.Note, &order.Status, &order.AdminNote, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return order, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) ListOrdersByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE account_id = $1 ORDER BY created_at DESC`
	return p.queryOrders(ctx, query, accountID)
}

func (p *Postgres) ListOrders(ctx context.Context) ([]models.Order, error) {
	return p.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (p *Postgres) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

func (p *Postgres) ListJournal(ctx context.Context, accountID uuid.UUID) ([]models.JournalEntry, error) {
	query := `SELECT id, account_id, amount, kind, ref_id, created_at
		FROM journal_entries WHERE account_id = $1 ORDER BY created_at`
	rows, err := p.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var out []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Kind, &e.RefID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InAccountTx locks the account row, runs fn against the transaction, and
// commits. Transient storage failures are retried a bounded number of times
// before surfacing as models.ErrStorage; business errors pass through
// untouched and are never retried.
func (p *Postgres) InAccountTx(ctx context.Context, accountID uuid.UUID, fn func(tx AccountTx) error) error {
	var lastErr error
	for attempt := 0; attempt < p.retryAttempts; attempt++ {
		if attempt > 0 {
			zap.L().Warn("retrying account transaction",
				zap.Int("attempt", attempt+1),
				zap.String("account_id", accountID.String()),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryBackoff * time.Duration(attempt)):
			}
		}

		err := p.runAccountTx(ctx, accountID, fn)
		if err == nil || !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", models.ErrStorage, lastErr)
}

func (p *Postgres) runAccountTx(ctx context.Context, accountID uuid.UUID, fn func(tx AccountTx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	account, err := scanAccount(tx.QueryRow(ctx, query, accountID))
	if err != nil {
		return err
	}

	if err := fn(&pgAccountTx{tx: tx, account: account}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// retryable reports whether an InAccountTx failure is worth another attempt.
// Business-rule rejections and caller cancellation are final.
func retryable(err error) bool {
	switch {
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrRequestNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrServiceNotFound),
		errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, models.ErrInvalidDecision),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrUnknownMethod):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

type pgAccountTx struct {
	tx      pgx.Tx
	account *models.Account
}

func (t *pgAccountTx) Account(_ context.Context) (*models.Account, error) {
	a := *t.account
	return &a, nil
}

func (t *pgAccountTx) AdjustBalance(ctx context.Context, delta int64) (int64, error) {
	query := `UPDATE accounts SET balance = balance + $1
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`
	var newBalance int64
	err := t.tx.QueryRow(ctx, query, delta, t.account.ID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t.account.Balance, models.ErrInsufficientBalance
		}
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	t.account.Balance = newBalance
	return newBalance, nil
}

func (t *pgAccountTx) GetTopUpForUpdate(ctx context.Context, id uuid.UUID) (*models.TopUpRequest, error) {
	query := `SELECT ` + topUpColumns + ` FROM topup_requests
		WHERE id = $1 AND account_id = $2 FOR UPDATE`
	return scanTopUp(t.tx.QueryRow(ctx, query, id, t.account.ID))
}

func (t *pgAccountTx) ResolveTopUp(ctx context.Context, id uuid.UUID, status, adminNote string, resolvedAt time.Time) error {
	query := `UPDATE topup_requests SET status = $1, admin_note = $2, resolved_at = $3
		WHERE id = $4 AND account_id = $5`
	tag, err := t.tx.Exec(ctx, query, status, adminNote, resolvedAt, id, t.account.ID)
	if err != nil {
		return fmt.Errorf("resolve top-up request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRequestNotFound
	}
	return nil
}

func (t *pgAccountTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `INSERT INTO orders (id, account_id, service_id, price, note, status, admin_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.tx.Exec(ctx, query,
		order.ID, order.AccountID, order.ServiceID, order.Price, order.Note,
		order.Status, order.AdminNote, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *pgAccountTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND account_id = $2 FOR UPDATE`
	return scanOrder(t.tx.QueryRow(ctx, query, id, t.account.ID))
}

func (t *pgAccountTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, adminNote string, updatedAt time.Time) error {
	query := `UPDATE orders SET status = $1,
		admin_note = CASE WHEN $2 = '' THEN admin_note ELSE $2 END,
		updated_at = $3
		WHERE id = $4 AND account_id = $5`
	tag, err := t.tx.Exec(ctx, query, status, adminNote, updatedAt, id, t.account.ID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (t *pgAccountTx) AppendJournal(ctx context.Context, entry *models.JournalEntry) error {
	query := `INSERT INTO journal_entries (id, account_id, amount, kind, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := t.tx.Exec(ctx, query,
		entry.ID, entry.AccountID, entry.Amount, entry.Kind, entry.RefID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}
