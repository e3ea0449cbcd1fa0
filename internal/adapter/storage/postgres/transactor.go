package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new database transaction. Serialization failures and
// deadlocks reported by any statement or by commit surface as
// domain.ErrVersionConflict.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &ledgerTx{Tx: tx}, nil
}

type ledgerTx struct {
	pgx.Tx
}

func (t *ledgerTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := t.Tx.Exec(ctx, sql, args...)
	return tag, asConflict(err)
}

func (t *ledgerTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return conflictRow{Row: t.Tx.QueryRow(ctx, sql, args...)}
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", asConflict(err))
	}
	return nil
}

type conflictRow struct {
	pgx.Row
}

func (r conflictRow) Scan(dest ...any) error {
	return asConflict(r.Row.Scan(dest...))
}
