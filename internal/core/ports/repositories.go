package ports

import (
	"context"
	"time"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDs returns the users that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx take part in the caller's atomic unit.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error)
	GetByUserAndCurrencyTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error)
	// MutateBalance adds delta to the balance only if the stored version still
	// equals expectedVersion and the result stays non-negative. It returns the
	// wallet as written, with Version incremented by one.
	// Fails with domain.ErrVersionConflict, domain.ErrInsufficientBalance or
	// domain.ErrWalletNotFound.
	MutateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	ListAll(ctx context.Context) ([]domain.Wallet, error)
	SumByCurrency(ctx context.Context) ([]domain.CurrencyBalance, error)
}

// TransactionRepository defines persistence operations for ledger transactions.
type TransactionRepository interface {
	// Create fails with domain.ErrDuplicateIdempotencyKey when the key is taken.
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	// Reporting queries
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	CountByType(ctx context.Context) (map[domain.TransactionType]int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	UserID   *uuid.UUID // matches either side
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip for the requested page.
func (p TransactionListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// WithdrawalRepository defines persistence for settlement tracking records.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.Withdrawal) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Withdrawal, error)
}

// AuditRepository defines the append-only audit trail.
type AuditRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditLogEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AuditLogEntry, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
