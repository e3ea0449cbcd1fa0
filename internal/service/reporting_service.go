package service

import (
	"context"
	"fmt"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Page size limits for transaction listings.
const (
	DefaultUserTransactionsLimit = 50
	MaxUserTransactionsLimit     = 200
	DefaultPageSize              = 20
	MaxPageSize                  = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	userRepo        ports.UserRepository
	walletRepo      ports.WalletRepository
	txRepo          ports.TransactionRepository
	defaultCurrency string
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	defaultCurrency string,
) ports.ReportingService {
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &reportingService{
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		txRepo:          txRepo,
		defaultCurrency: defaultCurrency,
	}
}

// GetBalance returns the user's balance in currency. A user without a wallet
// in that currency has a zero balance.
func (s *reportingService) GetBalance(ctx context.Context, userID uuid.UUID, currency string) (decimal.Decimal, string, error) {
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	wallet, err := s.walletRepo.GetByUserAndCurrency(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, "", apperror.InternalError(err)
	}
	if wallet == nil {
		return decimal.Zero, currency, nil
	}
	return wallet.Balance, wallet.Currency, nil
}

// GetUserTransactions returns the user's transactions on either side, newest first.
func (s *reportingService) GetUserTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	limit = clamp(limit, DefaultUserTransactionsLimit, MaxUserTransactionsLimit)

	txns, err := s.txRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := s.attachParties(ctx, txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// GetSystemSummary aggregates users, balances and transaction counts.
func (s *reportingService) GetSystemSummary(ctx context.Context) (*domain.SystemSummary, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count users: %w", err))
	}
	balances, err := s.walletRepo.SumByCurrency(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum balances: %w", err))
	}
	counts, err := s.txRepo.CountByType(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count transactions: %w", err))
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Total)
	}
	if balances == nil {
		balances = []domain.CurrencyBalance{}
	}

	return &domain.SystemSummary{
		TotalUsers:         users,
		TotalWalletBalance: total,
		TotalTransfers:     counts[domain.TransactionTypeTransfer],
		TotalWithdrawals:   counts[domain.TransactionTypeWithdrawal],
		TotalDeposits:      counts[domain.TransactionTypeDeposit],
		BalancesByCurrency: balances,
	}, nil
}

// ListTransactions returns a filtered, paginated list of transactions.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("Invalid status: %s", *params.Status))
	}
	if params.Type != nil && !params.Type.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("Invalid type: %s", *params.Type))
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	params.PageSize = clamp(params.PageSize, DefaultPageSize, MaxPageSize)

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	if err := s.attachParties(ctx, txns); err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// attachParties fills FromUser and ToUser with one user lookup per page.
func (s *reportingService) attachParties(ctx context.Context, txns []domain.Transaction) error {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, t := range txns {
		for _, id := range []*uuid.UUID{t.FromUserID, t.ToUserID} {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load transaction parties: %w", err))
	}
	byID := make(map[uuid.UUID]*domain.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}
	for i := range txns {
		if id := txns[i].FromUserID; id != nil {
			txns[i].FromUser = byID[*id]
		}
		if id := txns[i].ToUserID; id != nil {
			txns[i].ToUser = byID[*id]
		}
	}
	return nil
}

// clamp maps non-positive n to def and caps it at upper.
func clamp(n, def, upper int) int {
	if n <= 0 {
		return def
	}
	return min(n, upper)
}
