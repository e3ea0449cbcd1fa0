package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reportingTestDeps struct {
	svc        ports.ReportingService
	userRepo   *mocks.MockUserRepository
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
}

func setupReportingService(t *testing.T) *reportingTestDeps {
	ctrl := gomock.NewController(t)
	d := &reportingTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
	}
	d.svc = NewReportingService(d.userRepo, d.walletRepo, d.txRepo, "USD")
	return d
}

func TestReportingService_GetBalance(t *testing.T) {
	d := setupReportingService(t)
	userID := uuid.New()

	d.walletRepo.EXPECT().GetByUserAndCurrency(gomock.Any(), userID, "EUR").
		Return(testWallet(userID, "EUR", "3500.50", 2), nil)

	balance, currency, err := d.svc.GetBalance(context.Background(), userID, "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", currency)
	assert.True(t, decimal.RequireFromString("3500.50").Equal(balance))
}

func TestReportingService_GetBalance_NoWalletIsZero(t *testing.T) {
	d := setupReportingService(t)
	userID := uuid.New()

	d.walletRepo.EXPECT().GetByUserAndCurrency(gomock.Any(), userID, "USD").Return(nil, nil)

	balance, currency, err := d.svc.GetBalance(context.Background(), userID, "")
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
	assert.True(t, balance.IsZero())
}

func TestReportingService_GetBalance_Error(t *testing.T) {
	d := setupReportingService(t)

	d.walletRepo.EXPECT().GetByUserAndCurrency(gomock.Any(), gomock.Any(), "USD").Return(nil, errors.New("timeout"))

	_, _, err := d.svc.GetBalance(context.Background(), uuid.New(), "USD")
	assert.Equal(t, "SYS_001", appCode(err))
}

func TestReportingService_GetUserTransactions_Limits(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{0, 50}, {10, 10}, {1000, 200}} {
		d := setupReportingService(t)
		userID := uuid.New()
		d.txRepo.EXPECT().ListByUser(gomock.Any(), userID, tt.want).Return([]domain.Transaction{}, nil)

		_, err := d.svc.GetUserTransactions(context.Background(), userID, tt.in)
		require.NoError(t, err)
	}
}

func TestReportingService_GetSystemSummary(t *testing.T) {
	d := setupReportingService(t)

	d.userRepo.EXPECT().Count(gomock.Any()).Return(int64(3), nil)
	d.walletRepo.EXPECT().SumByCurrency(gomock.Any()).Return([]domain.CurrencyBalance{
		{Currency: "EUR", Total: decimal.RequireFromString("3500.50"), Wallets: 1},
		{Currency: "USD", Total: decimal.RequireFromString("107500.75"), Wallets: 3},
	}, nil)
	d.txRepo.EXPECT().CountByType(gomock.Any()).Return(map[domain.TransactionType]int64{
		domain.TransactionTypeTransfer:   4,
		domain.TransactionTypeWithdrawal: 2,
	}, nil)

	summary, err := d.svc.GetSystemSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalUsers)
	assert.True(t, decimal.RequireFromString("111001.25").Equal(summary.TotalWalletBalance))
	assert.Equal(t, int64(4), summary.TotalTransfers)
	assert.Equal(t, int64(2), summary.TotalWithdrawals)
	assert.Equal(t, int64(0), summary.TotalDeposits)
	assert.Len(t, summary.BalancesByCurrency, 2)
}

func TestReportingService_GetSystemSummary_EmptySystem(t *testing.T) {
	d := setupReportingService(t)

	d.userRepo.EXPECT().Count(gomock.Any()).Return(int64(0), nil)
	d.walletRepo.EXPECT().SumByCurrency(gomock.Any()).Return(nil, nil)
	d.txRepo.EXPECT().CountByType(gomock.Any()).Return(map[domain.TransactionType]int64{}, nil)

	summary, err := d.svc.GetSystemSummary(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.TotalWalletBalance.IsZero())
	assert.NotNil(t, summary.BalancesByCurrency)
}

func TestReportingService_ListTransactions_Defaults(t *testing.T) {
	d := setupReportingService(t)

	d.txRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, 1, p.Page)
			assert.Equal(t, DefaultPageSize, p.PageSize)
			return []domain.Transaction{}, 0, nil
		})

	_, total, err := d.svc.ListTransactions(context.Background(), ports.TransactionListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestReportingService_ListTransactions_CapsPageSize(t *testing.T) {
	d := setupReportingService(t)
	status := domain.TransactionStatusCompleted

	d.txRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, MaxPageSize, p.PageSize)
			assert.Equal(t, 3, p.Page)
			assert.Equal(t, &status, p.Status)
			return nil, 250, nil
		})

	_, total, err := d.svc.ListTransactions(context.Background(), ports.TransactionListParams{
		Page: 3, PageSize: 1000, Status: &status,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), total)
}

func TestReportingService_ListTransactions_InvalidFilters(t *testing.T) {
	badStatus := domain.TransactionStatus("REVERSED")
	badType := domain.TransactionType("REFUND")
	from := time.Now()
	to := from.Add(-time.Hour)

	for name, params := range map[string]ports.TransactionListParams{
		"status": {Status: &badStatus},
		"type":   {Type: &badType},
		"range":  {From: &from, To: &to},
	} {
		t.Run(name, func(t *testing.T) {
			d := setupReportingService(t)
			_, _, err := d.svc.ListTransactions(context.Background(), params)
			assert.Equal(t, "VAL_001", appCode(err))
		})
	}
}

func TestReportingService_ListTransactions_AttachesParties(t *testing.T) {
	d := setupReportingService(t)
	alice, bob := uuid.New(), uuid.New()
	txns := []domain.Transaction{
		{ID: uuid.New(), Type: domain.TransactionTypeTransfer, FromUserID: &alice, ToUserID: &bob},
		{ID: uuid.New(), Type: domain.TransactionTypeDeposit, ToUserID: &alice},
	}

	d.txRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(txns, int64(2), nil)
	d.userRepo.EXPECT().GetByIDs(gomock.Any(), []uuid.UUID{alice, bob}).Return([]domain.User{
		{ID: alice, Name: "Alice", Email: "alice@example.com"},
		{ID: bob, Name: "Bob", Email: "bob@example.com"},
	}, nil)

	got, _, err := d.svc.ListTransactions(context.Background(), ports.TransactionListParams{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &domain.UserSummary{ID: alice, Name: "Alice", Email: "alice@example.com"}, got[0].FromUser)
	assert.Equal(t, "Bob", got[0].ToUser.Name)
	assert.Nil(t, got[1].FromUser)
	assert.Equal(t, alice, got[1].ToUser.ID)
}

func TestReportingService_GetUserTransactions_PartyLookupFails(t *testing.T) {
	d := setupReportingService(t)
	userID := uuid.New()

	d.txRepo.EXPECT().ListByUser(gomock.Any(), userID, DefaultUserTransactionsLimit).
		Return([]domain.Transaction{{ID: uuid.New(), ToUserID: &userID}}, nil)
	d.userRepo.EXPECT().GetByIDs(gomock.Any(), []uuid.UUID{userID}).Return(nil, errors.New("db down"))

	_, err := d.svc.GetUserTransactions(context.Background(), userID, 0)
	assert.Equal(t, "SYS_001", appCode(err))
}
