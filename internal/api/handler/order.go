package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/catalog"
	"github.com/gashop/shop-ledger/internal/service"
)

type OrderHandler struct {
	orders  *service.OrderService
	catalog *catalog.Catalog
}

func NewOrderHandler(orders *service.OrderService, cat *catalog.Catalog) *OrderHandler {
	return &OrderHandler{orders: orders, catalog: cat}
}

// ListServices is the public catalog.
func (h *OrderHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.catalog.List())
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, _ := requestActor(r)

	var req struct {
		ServiceID string `json:"service_id"`
		Note      string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	out, err := h.orders.Purchase(r.Context(), accountID, req.ServiceID, req.Note)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("purchase failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/create-failed", "Failed to place order")
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"order":       out.Order,
		"new_balance": out.NewBalance,
	})
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	accountID, _ := requestActor(r)

	orders, err := h.orders.ListForAccount(r.Context(), accountID)
	if err != nil {
		zap.L().Error("order list failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/list-failed", "Failed to list orders")
		return
	}
	RespondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin := requestActor(r)

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("order read failed", zap.Error(err), zap.String("order_id", orderID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/read-failed", "Failed to load order")
		return
	}
	if !isAdmin && order.AccountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}
	RespondJSON(w, http.StatusOK, order)
}
