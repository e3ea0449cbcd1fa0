package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeTransfer, TransactionTypeWithdrawal:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

// Transaction is an immutable record of one money movement.
// Deposits only carry the destination side, withdrawals only the source side.
type Transaction struct {
	ID                  uuid.UUID         `json:"id"`
	Type                TransactionType   `json:"type"`
	Status              TransactionStatus `json:"status"`
	Amount              decimal.Decimal   `json:"amount"`
	Currency            string            `json:"currency"`
	FromUserID          *uuid.UUID        `json:"from_user_id,omitempty"`
	FromWalletID        *uuid.UUID        `json:"from_wallet_id,omitempty"`
	ToUserID            *uuid.UUID        `json:"to_user_id,omitempty"`
	ToWalletID          *uuid.UUID        `json:"to_wallet_id,omitempty"`
	IdempotencyKey      string            `json:"idempotency_key"`
	ExternalReferenceID *string           `json:"external_reference_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`

	// Filled by reporting reads only; not stored.
	FromUser *UserSummary `json:"from_user,omitempty"`
	ToUser   *UserSummary `json:"to_user,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// Involves reports whether the user is on either side of the transaction.
func (t *Transaction) Involves(userID uuid.UUID) bool {
	return (t.FromUserID != nil && *t.FromUserID == userID) ||
		(t.ToUserID != nil && *t.ToUserID == userID)
}

// Complete marks the transaction completed at the given instant.
func (t *Transaction) Complete(at time.Time) {
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &at
}
