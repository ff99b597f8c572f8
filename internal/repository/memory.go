package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gashop/shop-ledger/internal/models"
)

// Memory is a concurrency-safe in-memory Store used by unit tests and local
// development. Transactions stage their writes and apply them only when the
// callback succeeds, so a failed unit of work leaves no trace.
type Memory struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]models.Account
	topups   map[uuid.UUID]models.TopUpRequest
	orders   map[uuid.UUID]models.Order
	journal  []models.JournalEntry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[uuid.UUID]models.Account),
		topups:   make(map[uuid.UUID]models.TopUpRequest),
		orders:   make(map[uuid.UUID]models.Order),
	}
}

func (m *Memory) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Username, account.Username) {
			return models.ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, account.Email) {
			return models.ErrEmailTaken
		}
	}
	m.accounts[account.ID] = *account
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return &account, nil
}

func (m *Memory) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if strings.EqualFold(account.Username, username) {
			a := account
			return &a, nil
		}
	}
	return nil, models.ErrAccountNotFound
}

func (m *Memory) ListAccounts(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteAccount(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return models.ErrAccountNotFound
	}
	delete(m.accounts, id)
	for tid, t := range m.topups {
		if t.AccountID == id {
			delete(m.topups, tid)
		}
	}
	for oid, o := range m.orders {
		if o.AccountID == id {
			delete(m.orders, oid)
		}
	}
	kept := m.journal[:0]
	for _, e := range m.journal {
		if e.AccountID != id {
			kept = append(kept, e)
		}
	}
	m.journal = kept
	return nil
}

func (m *Memory) InsertTopUp(_ context.Context, req *models.TopUpRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[req.AccountID]; !ok {
		return models.ErrAccountNotFound
	}
	m.topups[req.ID] = *req
	return nil
}

func (m *Memory) GetTopUp(_ context.Context, id uuid.UUID) (*models.TopUpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.topups[id]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return &req, nil
}

func (m *Memory) ListTopUpsByAccount(_ context.Context, accountID uuid.UUID) ([]models.TopUpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TopUpRequest
	for _, req := range m.topups {
		if req.AccountID == accountID {
			out = append(out, req)
		}
	}
	sortTopUps(out)
	return out, nil
}

func (m *Memory) ListTopUpsByStatus(_ context.Context, status string) ([]models.TopUpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TopUpRequest
	for _, req := range m.topups {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sortTopUps(out)
	return out, nil
}

func (m *Memory) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &order, nil
}

func (m *Memory) ListOrdersByAccount(_ context.Context, accountID uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Order
	for _, order := range m.orders {
		if order.AccountID == accountID {
			out = append(out, order)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *Memory) ListOrders(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Order, 0, len(m.orders))
	for _, order := range m.orders {
		out = append(out, order)
	}
	sortOrders(out)
	return out, nil
}

func (m *Memory) ListJournal(_ context.Context, accountID uuid.UUID) ([]models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.JournalEntry
	for _, entry := range m.journal {
		if entry.AccountID == accountID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// InAccountTx holds the store lock for the duration of fn, which serializes
// all read-modify-write sequences the way the original flat-file write queue
// did, without exposing partial state.
func (m *Memory) InAccountTx(ctx context.Context, accountID uuid.UUID, fn func(tx AccountTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return models.ErrAccountNotFound
	}

	tx := &memoryTx{
		store:   m,
		account: account,
		topups:  make(map[uuid.UUID]models.TopUpRequest),
		orders:  make(map[uuid.UUID]models.Order),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx stages all writes against copies and flushes them in commit.
type memoryTx struct {
	store   *Memory
	account models.Account
	topups  map[uuid.UUID]models.TopUpRequest
	orders  map[uuid.UUID]models.Order
	journal []models.JournalEntry
}

func (tx *memoryTx) Account(_ context.Context) (*models.Account, error) {
	a := tx.account
	return &a, nil
}

func (tx *memoryTx) AdjustBalance(_ context.Context, delta int64) (int64, error) {
	next := tx.account.Balance + delta
	if next < 0 {
		return tx.account.Balance, models.ErrInsufficientBalance
	}
	tx.account.Balance = next
	return next, nil
}

func (tx *memoryTx) GetTopUpForUpdate(_ context.Context, id uuid.UUID) (*models.TopUpRequest, error) {
	if staged, ok := tx.topups[id]; ok {
		return &staged, nil
	}
	req, ok := tx.store.topups[id]
	if !ok || req.AccountID != tx.account.ID {
		return nil, models.ErrRequestNotFound
	}
	return &req, nil
}

func (tx *memoryTx) ResolveTopUp(ctx context.Context, id uuid.UUID, status, adminNote string, resolvedAt time.Time) error {
	req, err := tx.GetTopUpForUpdate(ctx, id)
	if err != nil {
		return err
	}
	req.Status = status
	req.AdminNote = adminNote
	req.ResolvedAt = &resolvedAt
	tx.topups[id] = *req
	return nil
}

func (tx *memoryTx) InsertOrder(_ context.Context, order *models.Order) error {
	tx.orders[order.ID] = *order
	return nil
}

func (tx *memoryTx) GetOrderForUpdate(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if staged, ok := tx.orders[id]; ok {
		return &staged, nil
	}
	order, ok := tx.store.orders[id]
	if !ok || order.AccountID != tx.account.ID {
		return nil, models.ErrOrderNotFound
	}
	return &order, nil
}

func (tx *memoryTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, adminNote string, updatedAt time.Time) error {
	order, err := tx.GetOrderForUpdate(ctx, id)
	if err != nil {
		return err
	}
	order.Status = status
	if adminNote != "" {
		order.AdminNote = adminNote
	}
	order.UpdatedAt = updatedAt
	tx.orders[id] = *order
	return nil
}

func (tx *memoryTx) AppendJournal(_ context.Context, entry *models.JournalEntry) error {
	tx.journal = append(tx.journal, *entry)
	return nil
}

func (tx *memoryTx) commit() {
	tx.store.accounts[tx.account.ID] = tx.account
	for id, req := range tx.topups {
		tx.store.topups[id] = req
	}
	for id, order := range tx.orders {
		tx.store.orders[id] = order
	}
	tx.store.journal = append(tx.store.journal, tx.journal...)
}

func sortTopUps(reqs []models.TopUpRequest) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
}

func sortOrders(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}
