package postgres

import (
	"context"
	"fmt"
)

// HealthCheck checks PostgreSQL and the ledger schema.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping fails when the database is unreachable or the wallets table is missing.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM wallets LIMIT 1"); err != nil {
		return fmt.Errorf("wallets check: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }
