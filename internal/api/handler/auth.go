package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/api/middleware"
	"github.com/gashop/shop-ledger/internal/auth"
	"github.com/gashop/shop-ledger/internal/service"
)

// AdminCredentials is the single configured admin login. The admin is not an
// account row and never holds a balance.
type AdminCredentials struct {
	Username string
	Password string
}

type AuthHandler struct {
	accounts *service.AccountService
	issuer   *auth.TokenIssuer
	sessions *auth.SessionStore
	admin    AdminCredentials
}

func NewAuthHandler(accounts *service.AccountService, issuer *auth.TokenIssuer, sessions *auth.SessionStore, admin AdminCredentials) *AuthHandler {
	return &AuthHandler{accounts: accounts, issuer: issuer, sessions: sessions, admin: admin}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("register failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/register-failed", "Failed to register")
		return
	}

	RespondJSON(w, http.StatusCreated, account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("login failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/login-failed", "Failed to log in")
		return
	}

	h.issueSession(w, r, account.ID, account.Username, auth.RoleUser)
}

// AdminLogin checks the configured admin credentials and issues an admin
// token.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.Username)), []byte(h.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.admin.Password)) == 1
	if !userOK || !passOK {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-credentials", "invalid username or password")
		return
	}

	h.issueSession(w, r, uuid.Nil, h.admin.Username, auth.RoleAdmin)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := h.issuer.Verify(tokenString)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-token", "Invalid token")
		return
	}
	if err := h.sessions.Revoke(r.Context(), claims.ID); err != nil {
		zap.L().Error("logout failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/logout-failed", "Failed to log out")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the caller's account, including the current balance.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, isAdmin := requestActor(r)
	if isAdmin {
		RespondJSON(w, http.StatusOK, map[string]string{
			"username": middleware.UsernameFromContext(r.Context()),
			"role":     auth.RoleAdmin,
		})
		return
	}

	account, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("me lookup failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to load account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// History returns the caller's top-ups, orders and journal entries.
func (h *AuthHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, _ := requestActor(r)

	history, err := h.accounts.History(r.Context(), accountID)
	if err != nil {
		if RespondBusinessError(w, r, err) {
			return
		}
		zap.L().Error("history read failed", zap.Error(err), zap.String("account_id", accountID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/history-failed", "Failed to load history")
		return
	}
	RespondJSON(w, http.StatusOK, history)
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, accountID uuid.UUID, username, role string) {
	token, jti, err := h.issuer.Issue(accountID, username, role)
	if err != nil {
		zap.L().Error("token issue failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-failed", "Failed to sign token")
		return
	}
	if err := h.sessions.Create(r.Context(), jti, username, h.issuer.TTL()); err != nil {
		zap.L().Error("session create failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/session-failed", "Failed to create session")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  role,
	})
}
