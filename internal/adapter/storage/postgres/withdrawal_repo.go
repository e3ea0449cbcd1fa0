package postgres

import (
	"context"
	"errors"
	"fmt"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a settlement record inside the caller's transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (id, user_id, amount, currency, status, external_reference, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Amount, w.Currency, w.Status,
		w.ExternalReference, w.TransactionID, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByTransactionID fetches the settlement record of a WITHDRAWAL transaction.
func (r *WithdrawalRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT id, user_id, amount, currency, status, external_reference, transaction_id, created_at, updated_at
		FROM withdrawals WHERE transaction_id = $1`

	w := &domain.Withdrawal{}
	err := r.pool.QueryRow(ctx, query, transactionID).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status,
		&w.ExternalReference, &w.TransactionID, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal by transaction: %w", err)
	}
	return w, nil
}
