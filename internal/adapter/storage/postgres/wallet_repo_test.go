package postgres

import (
	"context"
	"testing"
	"time"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(userID uuid.UUID) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  "USD",
		Balance:   decimal.RequireFromString("100.00"),
		Version:   3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func walletColumnNames() []string {
	return []string{"id", "user_id", "currency", "balance", "version", "created_at", "updated_at"}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletColumnNames()).AddRow(
		w.ID, w.UserID, w.Currency, w.Balance, w.Version, w.CreatedAt, w.UpdatedAt,
	)
}

func beginMockTx(t *testing.T, mock pgxmock.PgxPoolIface) pgx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.UserID, w.Currency, w.Balance, w.Version, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), tx, w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create_DuplicateCurrency(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.UserID, w.Currency, w.Balance, w.Version, w.CreatedAt, w.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintWalletsUserCcy})

	err = repo.Create(context.Background(), tx, w)
	assert.ErrorIs(t, err, domain.ErrDuplicateWallet)
}

func TestWalletRepo_GetByUserAndCurrency(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(w.UserID, "USD").
		WillReturnRows(walletRow(w))

	result, err := repo.GetByUserAndCurrency(context.Background(), w.UserID, "USD")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.True(t, w.Balance.Equal(result.Balance))
	assert.Equal(t, int64(3), result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByUserAndCurrencyTx_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(pgxmock.AnyArg(), "EUR").
		WillReturnRows(pgxmock.NewRows(walletColumnNames()))

	result, err := repo.GetByUserAndCurrencyTx(context.Background(), tx, uuid.New(), "EUR")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_MutateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	updated := newTestWallet(uuid.New())
	updated.Balance = decimal.RequireFromString("70.00")
	updated.Version = 4
	delta := decimal.RequireFromString("-30.00")
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("UPDATE wallets").
		WithArgs(updated.ID, delta, int64(3)).
		WillReturnRows(walletRow(updated))

	result, err := repo.MutateBalance(context.Background(), tx, updated.ID, delta, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Version)
	assert.True(t, decimal.RequireFromString("70").Equal(result.Balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_MutateBalance_Rejected(t *testing.T) {
	tests := []struct {
		name          string
		storedVersion *int64
		wantErr       error
	}{
		{"stale version", ptr(int64(5)), domain.ErrVersionConflict},
		{"would go negative", ptr(int64(3)), domain.ErrInsufficientBalance},
		{"missing wallet", nil, domain.ErrWalletNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewWalletRepo(mock)
			walletID := uuid.New()
			delta := decimal.RequireFromString("-500")
			tx := beginMockTx(t, mock)

			mock.ExpectQuery("UPDATE wallets").
				WithArgs(walletID, delta, int64(3)).
				WillReturnRows(pgxmock.NewRows(walletColumnNames()))

			versionRows := pgxmock.NewRows([]string{"version"})
			if tt.storedVersion != nil {
				versionRows.AddRow(*tt.storedVersion)
			}
			mock.ExpectQuery("SELECT version FROM wallets").
				WithArgs(walletID).
				WillReturnRows(versionRows)

			result, err := repo.MutateBalance(context.Background(), tx, walletID, delta, 3)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWalletRepo_MutateBalance_DeadlockIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	delta := decimal.RequireFromString("25")
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("UPDATE wallets").
		WithArgs(walletID, delta, int64(7)).
		WillReturnError(&pgconn.PgError{Code: codeDeadlockDetected, Message: "deadlock detected"})

	result, err := repo.MutateBalance(context.Background(), tx, walletID, delta, 7)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, codeDeadlockDetected, pgErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	usd := newTestWallet(userID)
	eur := newTestWallet(userID)
	eur.Currency = "EUR"

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()).
			AddRow(eur.ID, eur.UserID, eur.Currency, eur.Balance, eur.Version, eur.CreatedAt, eur.UpdatedAt).
			AddRow(usd.ID, usd.UserID, usd.Currency, usd.Balance, usd.Version, usd.CreatedAt, usd.UpdatedAt))

	wallets, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "EUR", wallets[0].Currency)
	assert.Equal(t, "USD", wallets[1].Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SumByCurrency(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT currency, COALESCE\\(SUM\\(balance\\), 0\\), COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"currency", "sum", "count"}).
			AddRow("EUR", decimal.RequireFromString("3500.50"), int64(1)).
			AddRow("USD", decimal.RequireFromString("107500.75"), int64(3)))

	totals, err := repo.SumByCurrency(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "USD", totals[1].Currency)
	assert.True(t, decimal.RequireFromString("107500.75").Equal(totals[1].Total))
	assert.Equal(t, int64(3), totals[1].Wallets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T {
	return &v
}
