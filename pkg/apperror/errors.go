package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error carrying a caller-facing message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New("VAL_002", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Wallet & Ledger (WAL) ----

func ErrWalletNotFound(userID, currency string) *AppError {
	return New("WAL_001", fmt.Sprintf("Wallet not found for user %s in %s", userID, currency), http.StatusNotFound)
}

func ErrInsufficientBalance() *AppError {
	return New("WAL_002", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrIdempotencyKeyReuse(key string) *AppError {
	return New("WAL_003", fmt.Sprintf("Idempotency key %q was already used for a different operation", key), http.StatusConflict)
}

// ---- Users (USR) ----

func ErrUserNotFound() *AppError {
	return New("USR_001", "User not found", http.StatusNotFound)
}

func ErrEmailExists() *AppError {
	return New("USR_002", "Email already registered", http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrConcurrentUpdate reports that optimistic retries were exhausted.
// Callers may safely retry with the same idempotency key.
func ErrConcurrentUpdate(err error) *AppError {
	return Wrap("SYS_002", "Wallet is busy, please retry", http.StatusServiceUnavailable, err)
}

func ErrServiceUnavailable(err error) *AppError {
	return Wrap("SYS_003", "Service temporarily unavailable", http.StatusServiceUnavailable, err)
}
