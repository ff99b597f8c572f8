package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/repository"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	minPasswordLength = 8
)

// AccountService owns registration, credential checks and account reads.
type AccountService struct {
	store repository.Store
	log   *zap.Logger
}

func NewAccountService(store repository.Store, log *zap.Logger) *AccountService {
	return &AccountService{store: store, log: log}
}

// Register creates an account with a zero balance. Usernames and emails are
// unique case-insensitively.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be %d-%d characters", models.ErrInvalidInput, minUsernameLength, maxUsernameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", models.ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Balance:      0,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("username", username))
	return account, nil
}

// Authenticate verifies the password against the stored hash. Unknown users
// and wrong passwords are reported identically.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := s.store.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) List(ctx context.Context) ([]models.Account, error) {
	return s.store.ListAccounts(ctx)
}

// History is everything an account holder sees on their activity page.
type History struct {
	TopUps  []models.TopUpRequest `json:"topups"`
	Orders  []models.Order        `json:"orders"`
	Journal []models.JournalEntry `json:"journal"`
}

func (s *AccountService) History(ctx context.Context, accountID uuid.UUID) (*History, error) {
	topups, err := s.store.ListTopUpsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	journal, err := s.store.ListJournal(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &History{TopUps: topups, Orders: orders, Journal: journal}, nil
}

// Delete removes the account and everything attached to it.
func (s *AccountService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.log.Info("account deleted", zap.String("account_id", id.String()))
	return nil
}
