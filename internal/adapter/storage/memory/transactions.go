package memory

import (
	"context"
	"fmt"
	"time"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a TransactionRepo over the store.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, taken := r.s.keys[t.IdempotencyKey]
	r.s.mu.RUnlock()
	if taken {
		return fmt.Errorf("insert transaction %s: %w", t.IdempotencyKey, domain.ErrDuplicateIdempotencyKey)
	}
	mt.txns = append(mt.txns, *t)
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.txns[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.keys[key]
	if !ok {
		return nil, nil
	}
	t := r.s.txns[id]
	return &t, nil
}

func (r *TransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if i, ok := mt.stagedTxn(id); ok {
		if mt.txns[i].Status != domain.TransactionStatusPending {
			return fmt.Errorf("pending transaction not found: %s", id)
		}
		mt.txns[i].Complete(completedAt)
		return nil
	}

	r.s.mu.RLock()
	t, ok := r.s.txns[id]
	r.s.mu.RUnlock()
	if !ok || t.Status != domain.TransactionStatusPending {
		return fmt.Errorf("pending transaction not found: %s", id)
	}
	t.Complete(completedAt)
	mt.txnUpdates[id] = t
	return nil
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	txns := r.snapshot(func(t *domain.Transaction) bool { return t.Involves(userID) })
	if len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	txns := r.snapshot(func(t *domain.Transaction) bool { return matches(t, params) })
	total := int64(len(txns))

	start := params.Offset()
	if start >= len(txns) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(txns) {
		end = len(txns)
	}
	return txns[start:end], total, nil
}

func (r *TransactionRepo) CountByType(ctx context.Context) (map[domain.TransactionType]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.TransactionType]int64)
	for _, t := range r.s.txns {
		counts[t.Type]++
	}
	return counts, nil
}

// snapshot returns matching committed transactions, newest first.
func (r *TransactionRepo) snapshot(keep func(*domain.Transaction) bool) []domain.Transaction {
	r.s.mu.RLock()
	var txns []domain.Transaction
	for i := len(r.s.txnOrder) - 1; i >= 0; i-- {
		t := r.s.txns[r.s.txnOrder[i]]
		if keep(&t) {
			txns = append(txns, t)
		}
	}
	r.s.mu.RUnlock()

	newestFirst(txns, func(t domain.Transaction) time.Time { return t.CreatedAt })
	return txns
}

func matches(t *domain.Transaction, p ports.TransactionListParams) bool {
	if p.UserID != nil && !t.Involves(*p.UserID) {
		return false
	}
	if p.Status != nil && t.Status != *p.Status {
		return false
	}
	if p.Type != nil && t.Type != *p.Type {
		return false
	}
	if p.From != nil && t.CreatedAt.Before(*p.From) {
		return false
	}
	if p.To != nil && t.CreatedAt.After(*p.To) {
		return false
	}
	return true
}
