package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/service"
)

// AdminHandler is the review-queue and back-office surface.
type AdminHandler struct {
	accounts *service.AccountService
	topups   *service.TopUpService
	orders   *service.OrderService
	audit    *service.ReconciliationService
}

func NewAdminHandler(accounts *service.AccountService, topups *service.TopUpService, orders *service.OrderService, audit *service.ReconciliationService) *AdminHandler {
	return &AdminHandler{accounts: accounts, topups: topups, orders: orders, audit: audit}
}

func (h *AdminHandler) ListPendingTopUps(w http.ResponseWriter, r *http.Request) {
	pending, err := h.topups.ListPending(r.Context())
	if err != nil {
		zap.L().Error("pending top-up list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "topup/list-failed", "Failed to list pending top-ups")
		return
	}
	RespondJSON(w, http.StatusOK, pending)
}

func (h *AdminHandler) ResolveTopUp(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-request-id", "Invalid request ID")
		return
	}

	var req struct {
		Decision  string `json:"decision"`
		AdminNote string `json:"admin_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	res, err := h.topups.Resolve(r.Context(), requestID, req.Decision, req.AdminNote)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("top-up resolve failed", zap.Error(err), zap.String("request_id", requestID.String()))
		RespondError(w, r, http.StatusInternalServerError, "topup/resolve-failed", "Failed to resolve top-up request")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"request":     res.Request,
		"new_balance": res.NewBalance,
	})
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		zap.L().Error("order list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "order/list-failed", "Failed to list orders")
		return
	}
	RespondJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	var req struct {
		Status    string `json:"status"`
		AdminNote string `json:"admin_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, req.Status, req.AdminNote)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("order status update failed", zap.Error(err), zap.String("order_id", orderID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/update-failed", "Failed to update order")
		return
	}
	RespondJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		zap.L().Error("account list failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/list-failed", "Failed to list accounts")
		return
	}
	RespondJSON(w, http.StatusOK, accounts)
}

func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}

	if err := h.accounts.Delete(r.Context(), accountID); err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("account delete failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/delete-failed", "Failed to delete account")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RunReconciliation triggers a ledger audit pass on demand.
func (h *AdminHandler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.audit.Run(r.Context())
	if err != nil {
		zap.L().Error("reconciliation failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "reconciliation/failed", "Failed to run reconciliation")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}
