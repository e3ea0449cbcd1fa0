package memory

import (
	"context"
	"time"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates an AuditRepo over the store.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditLogEntry) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	mt.audit = append(mt.audit, *e)
	return nil
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditLogEntry, error) {
	return r.newest(limit, func(*domain.AuditLogEntry) bool { return true }), nil
}

func (r *AuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AuditLogEntry, error) {
	return r.newest(limit, func(e *domain.AuditLogEntry) bool {
		return e.UserID != nil && *e.UserID == userID
	}), nil
}

func (r *AuditRepo) newest(limit int, keep func(*domain.AuditLogEntry) bool) []domain.AuditLogEntry {
	r.s.mu.RLock()
	var entries []domain.AuditLogEntry
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if keep(&e) {
			entries = append(entries, e)
		}
	}
	r.s.mu.RUnlock()

	newestFirst(entries, func(e domain.AuditLogEntry) time.Time { return e.CreatedAt })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
