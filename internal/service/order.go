package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/catalog"
	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/observability"
	"github.com/gashop/shop-ledger/internal/repository"
)

// orderTransitions lists the admin-reachable statuses from each current one.
// Done and cancelled are terminal.
var orderTransitions = map[string][]string{
	domain.OrderStatusCreated:    {domain.OrderStatusInProgress, domain.OrderStatusDone, domain.OrderStatusCancelled},
	domain.OrderStatusInProgress: {domain.OrderStatusDone, domain.OrderStatusCancelled},
	domain.OrderStatusDone:       {},
	domain.OrderStatusCancelled:  {},
}

func transitionAllowed(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderService purchases catalog services against account balances and lets
// admins walk orders through fulfilment.
type OrderService struct {
	store   repository.Store
	catalog *catalog.Catalog
	log     *zap.Logger
}

func NewOrderService(store repository.Store, cat *catalog.Catalog, log *zap.Logger) *OrderService {
	return &OrderService{store: store, catalog: cat, log: log}
}

// Purchase is the purchase outcome: the created order plus the balance after
// the debit.
type Purchase struct {
	Order      *models.Order
	NewBalance int64
}

// Purchase debits the catalog price and creates the order in one account
// transaction. The balance check and the debit are a single step, so two
// concurrent purchases can never both succeed on a balance that only covers
// one. The order stores the price it paid; later catalog edits do not touch
// it.
func (s *OrderService) Purchase(ctx context.Context, accountID uuid.UUID, serviceID, note string) (*Purchase, error) {
	svc, err := s.catalog.Lookup(serviceID)
	if err != nil {
		return nil, err
	}

	out := &Purchase{}
	err = s.store.InAccountTx(ctx, accountID, func(tx repository.AccountTx) error {
		newBalance, err := tx.AdjustBalance(ctx, -svc.Price)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		order := &models.Order{
			ID:        uuid.New(),
			AccountID: accountID,
			ServiceID: svc.ID,
			Price:     svc.Price,
			Note:      note,
			Status:    domain.OrderStatusCreated,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.AppendJournal(ctx, &models.JournalEntry{
			ID:        uuid.New(),
			AccountID: accountID,
			Amount:    -svc.Price,
			Kind:      domain.JournalKindOrderDebit,
			RefID:     order.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out.Order = order
		out.NewBalance = newBalance
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientBalance) {
			observability.IncrementBalanceRejection()
		}
		return nil, err
	}

	s.log.Info("order placed",
		zap.String("order_id", out.Order.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("service_id", serviceID),
		zap.Int64("price", svc.Price),
		zap.Int64("new_balance", out.NewBalance))
	return out, nil
}

// UpdateStatus moves an order along the fulfilment flow. Only forward
// transitions are accepted; an empty adminNote keeps the previous note.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status, adminNote string) (*models.Order, error) {
	if _, known := orderTransitions[status]; !known {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, status)
	}

	located, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var updated *models.Order
	err = s.store.InAccountTx(ctx, located.AccountID, func(tx repository.AccountTx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !transitionAllowed(order.Status, status) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.Status, status)
		}
		now := time.Now().UTC()
		if err := tx.UpdateOrderStatus(ctx, orderID, status, adminNote, now); err != nil {
			return err
		}
		order.Status = status
		if adminNote != "" {
			order.AdminNote = adminNote
		}
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("status", status))
	return updated, nil
}

func (s *OrderService) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]models.Order, error) {
	return s.store.ListOrdersByAccount(ctx, accountID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}
