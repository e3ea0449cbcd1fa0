package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditAction names the balance-affecting side of an operation.
type AuditAction string

const (
	AuditActionDepositCompleted    AuditAction = "DEPOSIT_COMPLETED"
	AuditActionTransferFrom        AuditAction = "TRANSFER_FROM"
	AuditActionTransferTo          AuditAction = "TRANSFER_TO"
	AuditActionWithdrawalRequested AuditAction = "WITHDRAWAL_REQUESTED"
)

// AuditLogEntry is an append-only record of one balance change.
type AuditLogEntry struct {
	ID            uuid.UUID        `json:"id"`
	TransactionID *uuid.UUID       `json:"transaction_id,omitempty"`
	Action        AuditAction      `json:"action"`
	OldBalance    *decimal.Decimal `json:"old_balance,omitempty"`
	NewBalance    *decimal.Decimal `json:"new_balance,omitempty"`
	UserID        *uuid.UUID       `json:"user_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewBalanceAudit builds an entry for a wallet that moved from before to after.
func NewBalanceAudit(txID, userID uuid.UUID, action AuditAction, before, after decimal.Decimal, at time.Time) *AuditLogEntry {
	return &AuditLogEntry{
		ID:            uuid.New(),
		TransactionID: &txID,
		Action:        action,
		OldBalance:    &before,
		NewBalance:    &after,
		UserID:        &userID,
		CreatedAt:     at,
	}
}
