package postgres

import (
	"context"
	"errors"
	"fmt"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, currency, balance, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet inside the caller's transaction.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, currency, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Currency, w.Balance, w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintWalletsUserCcy) {
			return fmt.Errorf("insert wallet: %w", domain.ErrDuplicateWallet)
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByUserAndCurrency fetches a wallet outside any transaction.
func (r *WalletRepo) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, userID, currency))
}

// GetByUserAndCurrencyTx fetches a wallet inside the caller's transaction.
// No row lock is taken; MutateBalance detects concurrent writers by version.
func (r *WalletRepo) GetByUserAndCurrencyTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2`
	return scanWallet(tx.QueryRow(ctx, query, userID, currency))
}

// MutateBalance applies delta with a compare-and-swap on version.
func (r *WalletRepo) MutateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET balance = balance + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3 AND balance + $2 >= 0
		RETURNING ` + walletColumns

	w, err := scanWallet(tx.QueryRow(ctx, query, walletID, delta, expectedVersion))
	if err != nil {
		return nil, fmt.Errorf("mutate wallet balance: %w", asConflict(err))
	}
	if w != nil {
		return w, nil
	}

	// Nothing matched: find out which guard rejected the update.
	var version int64
	err = tx.QueryRow(ctx, `SELECT version FROM wallets WHERE id = $1`, walletID).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("wallet %s: %w", walletID, domain.ErrWalletNotFound)
	case err != nil:
		return nil, fmt.Errorf("classify wallet mutation: %w", asConflict(err))
	case version != expectedVersion:
		return nil, fmt.Errorf("wallet %s at version %d, expected %d: %w", walletID, version, expectedVersion, domain.ErrVersionConflict)
	default:
		return nil, fmt.Errorf("wallet %s: %w", walletID, domain.ErrInsufficientBalance)
	}
}

// ListByUser returns all wallets held by a user, ordered by currency.
func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY currency`
	return r.queryWallets(ctx, query, userID)
}

// ListAll returns every wallet, grouped by user.
func (r *WalletRepo) ListAll(ctx context.Context) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY user_id, currency`
	return r.queryWallets(ctx, query)
}

// SumByCurrency aggregates balances per currency.
func (r *WalletRepo) SumByCurrency(ctx context.Context) ([]domain.CurrencyBalance, error) {
	query := `SELECT currency, COALESCE(SUM(balance), 0), COUNT(*)
		FROM wallets GROUP BY currency ORDER BY currency`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sum wallet balances: %w", err)
	}
	defer rows.Close()

	var totals []domain.CurrencyBalance
	for rows.Next() {
		var cb domain.CurrencyBalance
		if err := rows.Scan(&cb.Currency, &cb.Total, &cb.Wallets); err != nil {
			return nil, fmt.Errorf("scan currency total: %w", err)
		}
		totals = append(totals, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency totals: %w", err)
	}
	return totals, nil
}

func (r *WalletRepo) queryWallets(ctx context.Context, query string, args ...any) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
