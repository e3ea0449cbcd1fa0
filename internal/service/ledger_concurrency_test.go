package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"micro-savings-wallet/config"
	"micro-savings-wallet/internal/adapter/storage/memory"
	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerHarness wires the ledger over the in-memory store.
type ledgerHarness struct {
	store       *memory.Store
	users       *memory.UserRepo
	wallets     *memory.WalletRepo
	txns        *memory.TransactionRepo
	withdrawals *memory.WithdrawalRepo
	audit       *memory.AuditRepo
	publisher   *capturePublisher
	ledger      *LedgerServiceImpl
}

type capturePublisher struct {
	mu     sync.Mutex
	events []ports.WithdrawalRequestedEvent
}

func (p *capturePublisher) PublishWithdrawalRequested(_ context.Context, e ports.WithdrawalRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(domain.TransactionType, string, time.Duration) {}
func (nopMetrics) IncConflictRetry(domain.TransactionType)                         {}
func (nopMetrics) IncIdempotentReplay(domain.TransactionType)                      {}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	s := memory.NewStore()
	h := &ledgerHarness{
		store:       s,
		users:       memory.NewUserRepo(s),
		wallets:     memory.NewWalletRepo(s),
		txns:        memory.NewTransactionRepo(s),
		withdrawals: memory.NewWithdrawalRepo(s),
		audit:       memory.NewAuditRepo(s),
		publisher:   &capturePublisher{},
	}
	cfg := config.LedgerConfig{
		DefaultCurrency:     "USD",
		SupportedCurrencies: []string{"USD", "EUR", "GBP"},
		MaxRetries:          500,
		RetryBackoff:        100 * time.Microsecond,
	}
	guard := NewIdempotencyGuard(h.txns, nil, 0, zerolog.Nop())
	h.ledger = NewLedgerService(h.txns, h.wallets, h.withdrawals, h.audit, s, guard, h.publisher, nopMetrics{}, cfg, zerolog.Nop())
	return h
}

// openWallet creates a user holding balance in currency.
func (h *ledgerHarness) openWallet(t *testing.T, currency, balance string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	user := &domain.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "saver", Role: domain.UserRoleUser, CreatedAt: now, UpdatedAt: now}
	w := domain.NewWallet(user.ID, currency, now)
	w.Balance = decimal.RequireFromString(balance)

	tx, err := h.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, h.users.Create(ctx, tx, user))
	require.NoError(t, h.wallets.Create(ctx, tx, w))
	require.NoError(t, tx.Commit(ctx))
	return user.ID
}

func (h *ledgerHarness) wallet(t *testing.T, userID uuid.UUID, currency string) *domain.Wallet {
	t.Helper()
	w, err := h.wallets.GetByUserAndCurrency(context.Background(), userID, currency)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w
}

func (h *ledgerHarness) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	return h.wallet(t, userID, "USD").Balance
}

func appCode(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func TestLedger_DepositThenReplay(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "0")

	first, err := h.ledger.Deposit(ctx, ports.DepositRequest{UserID: alice, Amount: "100.00", IdempotencyKey: "k1"})
	require.NoError(t, err)
	second, err := h.ledger.Deposit(ctx, ports.DepositRequest{UserID: alice, Amount: "100.00", IdempotencyKey: "k1"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, decimal.NewFromInt(100).Equal(h.balance(t, alice)))
	assert.Equal(t, int64(1), h.wallet(t, alice, "USD").Version)

	entries, err := h.audit.ListByUser(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionDepositCompleted, entries[0].Action)
}

func TestLedger_TransferConservesAndAudits(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "100")
	bob := h.openWallet(t, "USD", "0")

	txn, err := h.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, ToUserID: bob, Amount: "30"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)

	stored, err := h.txns.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	assert.True(t, decimal.NewFromInt(70).Equal(h.balance(t, alice)))
	assert.True(t, decimal.NewFromInt(30).Equal(h.balance(t, bob)))

	recent, err := h.audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	actions := map[domain.AuditAction]domain.AuditLogEntry{}
	for _, e := range recent {
		actions[e.Action] = e
	}
	from := actions[domain.AuditActionTransferFrom]
	assert.True(t, decimal.NewFromInt(100).Equal(*from.OldBalance))
	assert.True(t, decimal.NewFromInt(70).Equal(*from.NewBalance))
	to := actions[domain.AuditActionTransferTo]
	assert.True(t, decimal.Zero.Equal(*to.OldBalance))
	assert.True(t, decimal.NewFromInt(30).Equal(*to.NewBalance))
}

func TestLedger_FailedTransferPersistsNothing(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "10")
	bob := h.openWallet(t, "USD", "0")

	_, err := h.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, ToUserID: bob, Amount: "10.01", IdempotencyKey: "fail-1"})
	assert.Equal(t, "WAL_002", appCode(err))

	txn, err := h.txns.GetByIdempotencyKey(ctx, "fail-1")
	require.NoError(t, err)
	assert.Nil(t, txn)
	recent, err := h.audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	assert.Equal(t, int64(0), h.wallet(t, alice, "USD").Version)
}

func TestLedger_WithdrawRecordsPendingSettlement(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "50")

	txn, err := h.ledger.Withdraw(ctx, ports.WithdrawRequest{UserID: alice, Amount: "20", IdempotencyKey: "wd"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, txn.Status)
	assert.True(t, decimal.NewFromInt(30).Equal(h.balance(t, alice)))

	w, err := h.withdrawals.GetByTransactionID(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.Equal(t, *txn.ExternalReferenceID, w.ExternalReference)

	_, err = h.ledger.Withdraw(ctx, ports.WithdrawRequest{UserID: alice, Amount: "20", IdempotencyKey: "wd"})
	require.NoError(t, err)
	require.Len(t, h.publisher.events, 1, "replay must not publish again")
	assert.Equal(t, w.ID, h.publisher.events[0].WithdrawalID)
}

func TestLedger_ConcurrentDepositsAllApply(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "0")

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Deposit(ctx, ports.DepositRequest{UserID: alice, Amount: "1.25"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	w := h.wallet(t, alice, "USD")
	assert.True(t, decimal.RequireFromString("50").Equal(w.Balance), "balance %s", w.Balance)
	assert.Equal(t, int64(n), w.Version)
}

func TestLedger_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "100")
	bob := h.openWallet(t, "USD", "0")

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, ToUserID: bob, Amount: "30"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case appCode(err) == "WAL_002":
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, n-3, insufficient)
	assert.True(t, decimal.NewFromInt(10).Equal(h.balance(t, alice)))
	assert.True(t, decimal.NewFromInt(90).Equal(h.balance(t, bob)))
}

func TestLedger_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newLedgerHarness(t)
		ctx := context.Background()
		alice := h.openWallet(t, "USD", "100")

		start := make(chan struct{})
		results := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := h.ledger.Withdraw(ctx, ports.WithdrawRequest{UserID: alice, Amount: "100"})
				results <- err
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		succeeded, insufficient := 0, 0
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case appCode(err) == "WAL_002":
				insufficient++
			default:
				t.Fatalf("round %d: unexpected error: %v", round, err)
			}
		}
		require.Equal(t, 1, succeeded, "round %d", round)
		require.Equal(t, 1, insufficient, "round %d", round)
		require.True(t, decimal.Zero.Equal(h.balance(t, alice)), "round %d: balance %s", round, h.balance(t, alice))

		withdrawalType := domain.TransactionTypeWithdrawal
		txns, total, err := h.txns.List(ctx, ports.TransactionListParams{Type: &withdrawalType, Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Equal(t, int64(1), total, "round %d", round)

		w, err := h.withdrawals.GetByTransactionID(ctx, txns[0].ID)
		require.NoError(t, err)
		require.NotNil(t, w, "round %d", round)
		require.Len(t, h.publisher.events, 1, "round %d", round)
		assert.Equal(t, w.ID, h.publisher.events[0].WithdrawalID)
	}
}

func TestLedger_ConcurrentSameKeyConverges(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "0")

	const n = 20
	ids := make(chan uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn, err := h.ledger.Deposit(ctx, ports.DepositRequest{UserID: alice, Amount: "5", IdempotencyKey: "same-key"})
			if assert.NoError(t, err) {
				ids <- txn.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uuid.UUID]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(h.balance(t, alice)))

	_, total, err := h.txns.List(ctx, ports.TransactionListParams{Page: 1, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestLedger_OpposingTransfersConserveTotal(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	alice := h.openWallet(t, "USD", "500")
	bob := h.openWallet(t, "USD", "500")

	const rounds = 25
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, ToUserID: bob, Amount: "3.10"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: bob, ToUserID: alice, Amount: "1.05"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, b := h.wallet(t, alice, "USD"), h.wallet(t, bob, "USD")
	assert.True(t, decimal.NewFromInt(1000).Equal(a.Balance.Add(b.Balance)))
	assert.True(t, decimal.RequireFromString("448.75").Equal(a.Balance), "alice balance %s", a.Balance)
	assert.Equal(t, int64(2*rounds), a.Version)
	assert.Equal(t, int64(2*rounds), b.Version)

	entries, err := h.audit.ListRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 4*rounds)
}
