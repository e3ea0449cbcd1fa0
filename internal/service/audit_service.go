package service

import (
	"context"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"

	"github.com/google/uuid"
)

// Activity feed limits.
const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

// auditService is the read side of the audit trail. Entries are written
// only by the ledger, inside its transactions.
type auditService struct {
	repo ports.AuditRepository
}

// NewAuditService creates a new audit service.
func NewAuditService(repo ports.AuditRepository) ports.AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) RecentActivity(ctx context.Context, limit int) ([]domain.AuditLogEntry, error) {
	entries, err := s.repo.ListRecent(ctx, clamp(limit, DefaultActivityLimit, MaxActivityLimit))
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return entries, nil
}

func (s *auditService) UserActivity(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AuditLogEntry, error) {
	entries, err := s.repo.ListByUser(ctx, userID, clamp(limit, DefaultActivityLimit, MaxActivityLimit))
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return entries, nil
}
