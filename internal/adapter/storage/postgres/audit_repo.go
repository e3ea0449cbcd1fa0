package postgres

import (
	"context"
	"fmt"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository. Rows are never updated or deleted.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create appends an entry inside the caller's transaction.
func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditLogEntry) error {
	query := `INSERT INTO audit_logs (id, transaction_id, action, old_balance, new_balance, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.TransactionID, e.Action, e.OldBalance, e.NewBalance, e.UserID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditLogEntry, error) {
	query := `SELECT id, transaction_id, action, old_balance, new_balance, user_id, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1`
	return r.query(ctx, query, limit)
}

// ListByUser returns the newest entries for one user first.
func (r *AuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AuditLogEntry, error) {
	query := `SELECT id, transaction_id, action, old_balance, new_balance, user_id, created_at
		FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.query(ctx, query, userID, limit)
}

func (r *AuditRepo) query(ctx context.Context, query string, args ...any) ([]domain.AuditLogEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Action, &e.OldBalance, &e.NewBalance, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}
