package domain

import "errors"

// Store-level failures. Adapters wrap these; services translate them to AppErrors.
var (
	ErrVersionConflict         = errors.New("wallet version conflict")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrDuplicateWallet         = errors.New("wallet already exists for currency")
)

// Input failures detected before touching the store.
var (
	ErrInvalidAmount   = errors.New("amount must be a positive decimal")
	ErrAmountPrecision = errors.New("amount has more than 2 decimal places")
)
