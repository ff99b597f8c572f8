package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/domain"
	"github.com/gashop/shop-ledger/internal/models"
	"github.com/gashop/shop-ledger/internal/service"
)

// BankDetails is shown to account holders so they can make the transfer; the
// reference code goes in the memo.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

type TopUpHandler struct {
	topups *service.TopUpService
	bank   BankDetails
}

func NewTopUpHandler(topups *service.TopUpService, bank BankDetails) *TopUpHandler {
	return &TopUpHandler{topups: topups, bank: bank}
}

type paymentInstructions struct {
	BankDetails
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

type topUpResponse struct {
	Request      *models.TopUpRequest `json:"request"`
	Instructions *paymentInstructions `json:"payment_instructions,omitempty"`
}

func (h *TopUpHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, _ := requestActor(r)

	var req struct {
		Method string `json:"method"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	created, err := h.topups.Create(r.Context(), accountID, req.Method, req.Amount)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("top-up create failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "topup/create-failed", "Failed to create top-up request")
		return
	}

	resp := topUpResponse{Request: created}
	if created.Method == domain.MethodBankTransfer {
		resp.Instructions = &paymentInstructions{
			BankDetails: h.bank,
			Amount:      created.Amount,
			Memo:        created.ReferenceCode,
		}
	}
	RespondJSON(w, http.StatusCreated, resp)
}

// PaymentInfo returns the shop's bank details for manual transfers.
func (h *TopUpHandler) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.bank)
}

func (h *TopUpHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	accountID, _ := requestActor(r)

	topups, err := h.topups.ListForAccount(r.Context(), accountID)
	if err != nil {
		zap.L().Error("top-up list failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "topup/list-failed", "Failed to list top-up requests")
		return
	}
	RespondJSON(w, http.StatusOK, topups)
}
