package models

import "errors"

// Business errors are grouped by how the API layer reports them:
// validation -> 400, not-found -> 404, conflict -> 409. Storage errors are
// retried inside the repository and surface as ErrStorage only after the
// retry budget is exhausted.
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrUnknownMethod = errors.New("unknown top-up method")
	ErrInvalidInput  = errors.New("invalid input")

	ErrAccountNotFound = errors.New("account not found")
	ErrRequestNotFound = errors.New("top-up request not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrOrderNotFound   = errors.New("order not found")

	ErrAlreadyResolved     = errors.New("top-up request already resolved")
	ErrInvalidDecision     = errors.New("invalid resolution decision")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUsernameTaken       = errors.New("username already registered")
	ErrEmailTaken          = errors.New("email already registered")

	ErrStorage = errors.New("storage failure")
)
