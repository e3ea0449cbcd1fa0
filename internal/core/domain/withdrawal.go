package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus tracks settlement with the external payout rail.
type WithdrawalStatus string

const (
	WithdrawalStatusPending WithdrawalStatus = "PENDING"
	WithdrawalStatusSettled WithdrawalStatus = "SETTLED"
	WithdrawalStatusFailed  WithdrawalStatus = "FAILED"
)

// Withdrawal is the settlement record created alongside a WITHDRAWAL transaction.
type Withdrawal struct {
	ID                uuid.UUID        `json:"id"`
	UserID            uuid.UUID        `json:"user_id"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	Status            WithdrawalStatus `json:"status"`
	ExternalReference string           `json:"external_reference"`
	TransactionID     uuid.UUID        `json:"transaction_id"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ExternalReferencePrefix marks references handed to the settlement rail.
const ExternalReferencePrefix = "EXT-"

// NewExternalReference returns a unique, time-sortable settlement reference.
func NewExternalReference() string {
	return ExternalReferencePrefix + ulid.Make().String()
}
