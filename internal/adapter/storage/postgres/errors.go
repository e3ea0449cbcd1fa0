package postgres

import (
	"errors"
	"fmt"

	"micro-savings-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the adapters react to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Constraint names from schema.sql.
const (
	constraintTxIdempotencyKey = "transactions_idempotency_key_key"
	constraintUsersEmail       = "users_email_key"
	constraintWalletsUserCcy   = "wallets_user_id_currency_key"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraint
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// asConflict marks serialization failures and deadlocks as
// domain.ErrVersionConflict so the ledger retries the whole unit.
// The *pgconn.PgError stays in the chain.
func asConflict(err error) error {
	if err == nil || !isRetryable(err) || errors.Is(err, domain.ErrVersionConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrVersionConflict, err)
}
