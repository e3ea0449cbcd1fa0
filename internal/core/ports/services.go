package ports

import (
	"context"
	"time"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached transaction JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SettlementPublisher hands withdrawal requests to the external payout rail.
type SettlementPublisher interface {
	PublishWithdrawalRequested(ctx context.Context, event WithdrawalRequestedEvent) error
	Close() error
}

// WithdrawalRequestedEvent is emitted once per committed withdrawal.
type WithdrawalRequestedEvent struct {
	WithdrawalID      uuid.UUID       `json:"withdrawal_id"`
	TransactionID     uuid.UUID       `json:"transaction_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ExternalReference string          `json:"external_reference"`
	RequestedAt       time.Time       `json:"requested_at"`
}

// Ledger operation outcomes reported to LedgerMetrics.
const (
	OutcomeCommitted = "committed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// LedgerMetrics records ledger operation outcomes.
type LedgerMetrics interface {
	ObserveOperation(op domain.TransactionType, outcome string, elapsed time.Duration)
	IncConflictRetry(op domain.TransactionType)
	IncIdempotentReplay(op domain.TransactionType)
}

// --- Service Ports (Business Logic) ---

// LedgerService moves money between wallets as single atomic units.
type LedgerService interface {
	Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error)
}

// DepositRequest holds input for crediting a user's wallet.
// Amount is the caller's decimal string; the ledger parses and validates it.
type DepositRequest struct {
	UserID         uuid.UUID
	Amount         string
	Currency       string // empty = configured default
	IdempotencyKey string // empty = generated
}

// TransferRequest holds input for moving funds between two users.
type TransferRequest struct {
	FromUserID     uuid.UUID
	ToUserID       uuid.UUID
	Amount         string
	Currency       string
	IdempotencyKey string
}

// WithdrawRequest holds input for sending funds to the external rail.
type WithdrawRequest struct {
	UserID         uuid.UUID
	Amount         string
	Currency       string
	IdempotencyKey string
}

// ReportingService defines read-only balance and transaction queries.
type ReportingService interface {
	GetBalance(ctx context.Context, userID uuid.UUID, currency string) (decimal.Decimal, string, error) // balance, currency, error
	GetUserTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	GetSystemSummary(ctx context.Context) (*domain.SystemSummary, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// AuditService exposes the audit trail as activity feeds.
type AuditService interface {
	RecentActivity(ctx context.Context, limit int) ([]domain.AuditLogEntry, error)
	UserActivity(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AuditLogEntry, error)
}

// UserService manages account holders.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*domain.UserWithWallets, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.UserWithWallets, error)
	ListUsers(ctx context.Context) ([]domain.UserWithWallets, error)
}

// CreateUserRequest holds input for registering a user.
type CreateUserRequest struct {
	Email string
	Name  string
	Role  domain.UserRole // empty = user
}
