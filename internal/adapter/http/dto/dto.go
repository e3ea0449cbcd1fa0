package dto

import (
	"encoding/json"

	"micro-savings-wallet/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Request bodies use the public API's camelCase field names. Amounts are
// accepted as JSON numbers or decimal strings and parsed by the ledger.

// DepositRequest is the request body for POST /dashboard/deposit.
type DepositRequest struct {
	UserID   string      `json:"userId" binding:"required,uuid"`
	Amount   json.Number `json:"amount" binding:"required"`
	Currency string      `json:"currency" binding:"omitempty,currency_code"`
}

// TransferRequest is the request body for POST /dashboard/transfer.
type TransferRequest struct {
	FromUserID string      `json:"fromUserId" binding:"required,uuid"`
	ToUserID   string      `json:"toUserId" binding:"required,uuid"`
	Amount     json.Number `json:"amount" binding:"required"`
	Currency   string      `json:"currency" binding:"omitempty,currency_code"`
}

// WithdrawRequest is the request body for POST /dashboard/withdraw.
type WithdrawRequest struct {
	UserID   string      `json:"userId" binding:"required,uuid"`
	Amount   json.Number `json:"amount" binding:"required"`
	Currency string      `json:"currency" binding:"omitempty,currency_code"`
}

// IdempotencyHeader binds the optional Idempotency-Key request header.
type IdempotencyHeader struct {
	Key string `header:"Idempotency-Key" binding:"omitempty,idempotency_key"`
}

// CreateUserRequest is the request body for POST /users.
type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Name  string `json:"name" binding:"required,min=1,max=100"`
	Role  string `json:"role" binding:"omitempty,oneof=user admin"`
}

// TransactionListQuery binds the admin transactions table filters.
type TransactionListQuery struct {
	Type     string `form:"type"`
	Status   string `form:"status"`
	UserID   string `form:"userId" binding:"omitempty,uuid"`
	From     string `form:"from"`
	To       string `form:"to"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// LimitQuery binds an optional ?limit= parameter.
type LimitQuery struct {
	Limit int `form:"limit"`
}

// BalanceResponse is the response for balance queries.
type BalanceResponse struct {
	UserID   string          `json:"user_id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// UserTransactionsResponse wraps a user's transaction history.
type UserTransactionsResponse struct {
	UserID string               `json:"user_id"`
	Items  []domain.Transaction `json:"items"`
}

// TransactionListResponse wraps paginated transaction list.
type TransactionListResponse struct {
	Items      []domain.Transaction `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}
