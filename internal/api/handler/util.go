package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gashop/shop-ledger/internal/api/middleware"
	"github.com/gashop/shop-ledger/internal/api/problem"
	"github.com/gashop/shop-ledger/internal/auth"
	"github.com/gashop/shop-ledger/internal/models"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool) {
	accountID := middleware.AccountIDFromContext(r.Context())
	isAdmin := middleware.RoleFromContext(r.Context()) == auth.RoleAdmin
	return accountID, isAdmin
}

// RespondBusinessError maps the ledger's error taxonomy onto HTTP statuses.
// It reports whether err was recognized; unknown errors are the caller's
// problem.
func RespondBusinessError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		RespondError(w, r, http.StatusBadRequest, "topup/invalid-amount", err.Error())
	case errors.Is(err, models.ErrUnknownMethod):
		RespondError(w, r, http.StatusBadRequest, "topup/unknown-method", err.Error())
	case errors.Is(err, models.ErrInvalidInput):
		RespondError(w, r, http.StatusBadRequest, "request/invalid-input", err.Error())
	case errors.Is(err, models.ErrInvalidDecision):
		RespondError(w, r, http.StatusBadRequest, "topup/invalid-decision", err.Error())
	case errors.Is(err, models.ErrAccountNotFound):
		RespondError(w, r, http.StatusNotFound, "account/not-found", "account not found")
	case errors.Is(err, models.ErrRequestNotFound):
		RespondError(w, r, http.StatusNotFound, "topup/not-found", "top-up request not found")
	case errors.Is(err, models.ErrServiceNotFound):
		RespondError(w, r, http.StatusNotFound, "catalog/service-not-found", "service not found")
	case errors.Is(err, models.ErrOrderNotFound):
		RespondError(w, r, http.StatusNotFound, "order/not-found", "order not found")
	case errors.Is(err, models.ErrAlreadyResolved):
		RespondError(w, r, http.StatusConflict, "topup/already-resolved", "top-up request already resolved")
	case errors.Is(err, models.ErrInvalidTransition):
		RespondError(w, r, http.StatusConflict, "order/invalid-transition", err.Error())
	case errors.Is(err, models.ErrInsufficientBalance):
		RespondError(w, r, http.StatusConflict, "balance/insufficient", "insufficient balance")
	case errors.Is(err, models.ErrUsernameTaken):
		RespondError(w, r, http.StatusConflict, "account/username-taken", "username already registered")
	case errors.Is(err, models.ErrEmailTaken):
		RespondError(w, r, http.StatusConflict, "account/email-taken", "email already registered")
	case errors.Is(err, models.ErrInvalidCredentials):
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-credentials", "invalid username or password")
	default:
		return false
	}
	return true
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
