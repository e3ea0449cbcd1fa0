package memory

import (
	"context"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	s *Store
}

// NewWithdrawalRepo creates a WithdrawalRepo over the store.
func NewWithdrawalRepo(s *Store) *WithdrawalRepo {
	return &WithdrawalRepo{s: s}
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	mt.withdrawals = append(mt.withdrawals, *w)
	return nil
}

func (r *WithdrawalRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Withdrawal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, w := range r.s.withdrawals {
		if w.TransactionID == transactionID {
			return &w, nil
		}
	}
	return nil, nil
}
