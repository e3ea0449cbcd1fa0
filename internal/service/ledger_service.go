package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"micro-savings-wallet/config"
	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// LedgerServiceImpl implements ports.LedgerService.
// Every operation runs as one database transaction. Wallet balances are
// changed with version-checked updates; a version conflict aborts the
// whole unit, which is retried with fresh reads.
type LedgerServiceImpl struct {
	txRepo         ports.TransactionRepository
	walletRepo     ports.WalletRepository
	withdrawalRepo ports.WithdrawalRepository
	auditRepo      ports.AuditRepository
	transactor     ports.DBTransactor
	guard          *IdempotencyGuard
	publisher      ports.SettlementPublisher
	metrics        ports.LedgerMetrics
	cfg            config.LedgerConfig
	log            zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	withdrawalRepo ports.WithdrawalRepository,
	auditRepo ports.AuditRepository,
	transactor ports.DBTransactor,
	guard *IdempotencyGuard,
	publisher ports.SettlementPublisher,
	metrics ports.LedgerMetrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = domain.DefaultCurrency
	}
	return &LedgerServiceImpl{
		txRepo:         txRepo,
		walletRepo:     walletRepo,
		withdrawalRepo: withdrawalRepo,
		auditRepo:      auditRepo,
		transactor:     transactor,
		guard:          guard,
		publisher:      publisher,
		metrics:        metrics,
		cfg:            cfg,
		log:            log,
		now:            domain.Now,
		sleep:          sleepContext,
	}
}

// attemptFunc performs one try of an operation inside tx.
type attemptFunc func(ctx context.Context, tx pgx.Tx) (*domain.Transaction, error)

// Deposit credits a user's wallet from outside the system.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.Transaction, error) {
	op := domain.TransactionTypeDeposit
	start := time.Now()

	if req.UserID == uuid.Nil {
		return nil, s.reject(op, start, apperror.Validation("userId is required"))
	}
	amount, currency, key, err := s.normalize(req.Amount, req.Currency, req.IdempotencyKey)
	if err != nil {
		return nil, s.reject(op, start, err)
	}

	txn, replayed, err := s.execute(ctx, op, key, start, func(ctx context.Context, tx pgx.Tx) (*domain.Transaction, error) {
		wallet, err := s.walletRepo.GetByUserAndCurrencyTx(ctx, tx, req.UserID, currency)
		if err != nil {
			return nil, fmt.Errorf("read wallet: %w", err)
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound(req.UserID.String(), currency)
		}

		now := s.now()
		txn := &domain.Transaction{
			ID:             uuid.New(),
			Type:           op,
			Status:         domain.TransactionStatusCompleted,
			Amount:         amount,
			Currency:       currency,
			ToUserID:       &req.UserID,
			ToWalletID:     &wallet.ID,
			IdempotencyKey: key,
			CreatedAt:      now,
			CompletedAt:    &now,
		}
		if err := s.txRepo.Create(ctx, tx, txn); err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}

		updated, err := s.walletRepo.MutateBalance(ctx, tx, wallet.ID, amount, wallet.Version)
		if err != nil {
			return nil, s.walletErr(err, req.UserID, currency, "credit wallet")
		}

		entry := domain.NewBalanceAudit(txn.ID, req.UserID, domain.AuditActionDepositCompleted, wallet.Balance, updated.Balance, now)
		if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("append audit: %w", err)
		}
		return txn, nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("user_id", req.UserID.String()).
			Str("amount", txn.Amount.String()).
			Str("currency", txn.Currency).
			Msg("deposit completed")
	}
	return txn, nil
}

// Transfer moves funds between two users' wallets in the same currency.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	op := domain.TransactionTypeTransfer
	start := time.Now()

	if req.FromUserID == uuid.Nil || req.ToUserID == uuid.Nil {
		return nil, s.reject(op, start, apperror.Validation("fromUserId and toUserId are required"))
	}
	if req.FromUserID == req.ToUserID {
		return nil, s.reject(op, start, apperror.Validation("cannot transfer to the same user"))
	}
	amount, currency, key, err := s.normalize(req.Amount, req.Currency, req.IdempotencyKey)
	if err != nil {
		return nil, s.reject(op, start, err)
	}

	txn, replayed, err := s.execute(ctx, op, key, start, func(ctx context.Context, tx pgx.Tx) (*domain.Transaction, error) {
		from, err := s.walletRepo.GetByUserAndCurrencyTx(ctx, tx, req.FromUserID, currency)
		if err != nil {
			return nil, fmt.Errorf("read sender wallet: %w", err)
		}
		if from == nil {
			return nil, apperror.ErrWalletNotFound(req.FromUserID.String(), currency)
		}
		to, err := s.walletRepo.GetByUserAndCurrencyTx(ctx, tx, req.ToUserID, currency)
		if err != nil {
			return nil, fmt.Errorf("read receiver wallet: %w", err)
		}
		if to == nil {
			return nil, apperror.ErrWalletNotFound(req.ToUserID.String(), currency)
		}
		if !from.CanDebit(amount) {
			return nil, apperror.ErrInsufficientBalance()
		}

		now := s.now()
		txn := &domain.Transaction{
			ID:             uuid.New(),
			Type:           op,
			Status:         domain.TransactionStatusPending,
			Amount:         amount,
			Currency:       currency,
			FromUserID:     &req.FromUserID,
			FromWalletID:   &from.ID,
			ToUserID:       &req.ToUserID,
			ToWalletID:     &to.ID,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if err := s.txRepo.Create(ctx, tx, txn); err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}

		// Debit first so an overdraft fails before any credit exists.
		debited, err := s.walletRepo.MutateBalance(ctx, tx, from.ID, amount.Neg(), from.Version)
		if err != nil {
			return nil, s.walletErr(err, req.FromUserID, currency, "debit sender")
		}
		credited, err := s.walletRepo.MutateBalance(ctx, tx, to.ID, amount, to.Version)
		if err != nil {
			return nil, s.walletErr(err, req.ToUserID, currency, "credit receiver")
		}

		completedAt := s.now()
		if err := s.txRepo.MarkCompleted(ctx, tx, txn.ID, completedAt); err != nil {
			return nil, fmt.Errorf("complete transaction: %w", err)
		}
		txn.Complete(completedAt)

		entries := []*domain.AuditLogEntry{
			domain.NewBalanceAudit(txn.ID, req.FromUserID, domain.AuditActionTransferFrom, from.Balance, debited.Balance, completedAt),
			domain.NewBalanceAudit(txn.ID, req.ToUserID, domain.AuditActionTransferTo, to.Balance, credited.Balance, completedAt),
		}
		for _, entry := range entries {
			if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
				return nil, fmt.Errorf("append audit: %w", err)
			}
		}
		return txn, nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("from_user_id", req.FromUserID.String()).
			Str("to_user_id", req.ToUserID.String()).
			Str("amount", txn.Amount.String()).
			Str("currency", txn.Currency).
			Msg("transfer completed")
	}
	return txn, nil
}

// Withdraw debits a user's wallet immediately and records a pending payout.
// The settlement request is published after commit.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.Transaction, error) {
	op := domain.TransactionTypeWithdrawal
	start := time.Now()

	if req.UserID == uuid.Nil {
		return nil, s.reject(op, start, apperror.Validation("userId is required"))
	}
	amount, currency, key, err := s.normalize(req.Amount, req.Currency, req.IdempotencyKey)
	if err != nil {
		return nil, s.reject(op, start, err)
	}

	var withdrawal *domain.Withdrawal
	txn, replayed, err := s.execute(ctx, op, key, start, func(ctx context.Context, tx pgx.Tx) (*domain.Transaction, error) {
		withdrawal = nil

		wallet, err := s.walletRepo.GetByUserAndCurrencyTx(ctx, tx, req.UserID, currency)
		if err != nil {
			return nil, fmt.Errorf("read wallet: %w", err)
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound(req.UserID.String(), currency)
		}
		if !wallet.CanDebit(amount) {
			return nil, apperror.ErrInsufficientBalance()
		}

		now := s.now()
		ref := domain.NewExternalReference()
		txn := &domain.Transaction{
			ID:                  uuid.New(),
			Type:                op,
			Status:              domain.TransactionStatusPending,
			Amount:              amount,
			Currency:            currency,
			FromUserID:          &req.UserID,
			FromWalletID:        &wallet.ID,
			IdempotencyKey:      key,
			ExternalReferenceID: &ref,
			CreatedAt:           now,
		}
		if err := s.txRepo.Create(ctx, tx, txn); err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}

		w := &domain.Withdrawal{
			ID:                uuid.New(),
			UserID:            req.UserID,
			Amount:            amount,
			Currency:          currency,
			Status:            domain.WithdrawalStatusPending,
			ExternalReference: ref,
			TransactionID:     txn.ID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.withdrawalRepo.Create(ctx, tx, w); err != nil {
			return nil, fmt.Errorf("create withdrawal: %w", err)
		}

		updated, err := s.walletRepo.MutateBalance(ctx, tx, wallet.ID, amount.Neg(), wallet.Version)
		if err != nil {
			return nil, s.walletErr(err, req.UserID, currency, "debit wallet")
		}

		entry := domain.NewBalanceAudit(txn.ID, req.UserID, domain.AuditActionWithdrawalRequested, wallet.Balance, updated.Balance, now)
		if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("append audit: %w", err)
		}

		withdrawal = w
		return txn, nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return txn, nil
	}

	s.publishSettlement(ctx, withdrawal)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", txn.Amount.String()).
		Str("currency", txn.Currency).
		Str("external_reference", withdrawal.ExternalReference).
		Msg("withdrawal requested")
	return txn, nil
}

// execute runs attempt with idempotency and conflict handling. The bool
// result reports whether an earlier transaction was returned.
func (s *LedgerServiceImpl) execute(ctx context.Context, op domain.TransactionType, key string, start time.Time, attempt attemptFunc) (*domain.Transaction, bool, error) {
	existing, err := s.guard.Lookup(ctx, key, op)
	if err != nil {
		s.metrics.ObserveOperation(op, outcomeFor(err), time.Since(start))
		return nil, false, err
	}
	if existing != nil {
		s.replayed(op, key, start)
		return existing, true, nil
	}

	var lastErr error
	for n := 1; n <= s.cfg.MaxRetries; n++ {
		txn, err := s.runAttempt(ctx, attempt)
		switch {
		case err == nil:
			s.guard.Remember(ctx, txn)
			s.metrics.ObserveOperation(op, ports.OutcomeCommitted, time.Since(start))
			return txn, false, nil

		case errors.Is(err, domain.ErrDuplicateIdempotencyKey):
			winner, err := s.guard.Resolve(ctx, key, op)
			if err != nil {
				s.metrics.ObserveOperation(op, outcomeFor(err), time.Since(start))
				return nil, false, err
			}
			s.replayed(op, key, start)
			return winner, true, nil

		case errors.Is(err, domain.ErrVersionConflict):
			lastErr = err
			s.metrics.IncConflictRetry(op)
			s.log.Debug().Err(err).
				Str("type", string(op)).
				Str("key", key).
				Int("attempt", n).
				Msg("wallet version conflict, retrying")
			if n < s.cfg.MaxRetries {
				if err := s.sleep(ctx, s.backoff(n)); err != nil {
					s.metrics.ObserveOperation(op, ports.OutcomeError, time.Since(start))
					return nil, false, apperror.ErrServiceUnavailable(err)
				}
			}

		default:
			appErr := toAppError(err)
			s.metrics.ObserveOperation(op, outcomeFor(appErr), time.Since(start))
			if appErr.HTTPStatus >= 500 {
				s.log.Error().Err(err).Str("type", string(op)).Str("key", key).Msg("ledger operation failed")
			}
			return nil, false, appErr
		}
	}

	s.metrics.ObserveOperation(op, ports.OutcomeConflict, time.Since(start))
	s.log.Warn().Err(lastErr).
		Str("type", string(op)).
		Str("key", key).
		Int("attempts", s.cfg.MaxRetries).
		Msg("giving up after repeated wallet version conflicts")
	return nil, false, apperror.ErrConcurrentUpdate(lastErr)
}

// runAttempt wraps one try in its own database transaction. Once the attempt
// succeeds, commit is not cancelled with the request.
func (s *LedgerServiceImpl) runAttempt(ctx context.Context, attempt attemptFunc) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	txn, err := attempt(ctx, dbTx)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return txn, nil
}

// normalize validates the shared request fields before any store access.
func (s *LedgerServiceImpl) normalize(rawAmount, rawCurrency, rawKey string) (decimal.Decimal, string, string, error) {
	amount, err := domain.ParseAmount(rawAmount)
	if err != nil {
		if errors.Is(err, domain.ErrAmountPrecision) {
			return decimal.Zero, "", "", apperror.Validation("Amount must have at most 2 decimal places")
		}
		return decimal.Zero, "", "", apperror.Validation("Amount must be a positive number")
	}

	currency := domain.NormalizeCurrency(rawCurrency)
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if !currencyPattern.MatchString(currency) || !s.cfg.Supports(currency) {
		return decimal.Zero, "", "", apperror.Validation(fmt.Sprintf("Unsupported currency: %s", currency))
	}

	key := rawKey
	if key == "" {
		key = domain.NewIdempotencyKey()
	} else if !domain.ValidIdempotencyKey(key) {
		return decimal.Zero, "", "", apperror.Validation("Idempotency key must be 1-128 characters of letters, digits, '_', '-', '.' or ':'")
	}
	return amount, currency, key, nil
}

func (s *LedgerServiceImpl) walletErr(err error, userID uuid.UUID, currency, step string) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return apperror.ErrInsufficientBalance()
	case errors.Is(err, domain.ErrWalletNotFound):
		return apperror.ErrWalletNotFound(userID.String(), currency)
	default:
		return fmt.Errorf("%s: %w", step, err)
	}
}

func (s *LedgerServiceImpl) publishSettlement(ctx context.Context, w *domain.Withdrawal) {
	if s.publisher == nil || w == nil {
		return
	}
	event := ports.WithdrawalRequestedEvent{
		WithdrawalID:      w.ID,
		TransactionID:     w.TransactionID,
		UserID:            w.UserID,
		Amount:            w.Amount,
		Currency:          w.Currency,
		ExternalReference: w.ExternalReference,
		RequestedAt:       w.CreatedAt,
	}
	if err := s.publisher.PublishWithdrawalRequested(context.WithoutCancel(ctx), event); err != nil {
		s.log.Error().Err(err).
			Str("withdrawal_id", w.ID.String()).
			Str("external_reference", w.ExternalReference).
			Msg("failed to publish settlement request")
	}
}

func (s *LedgerServiceImpl) reject(op domain.TransactionType, start time.Time, err error) error {
	s.metrics.ObserveOperation(op, ports.OutcomeRejected, time.Since(start))
	return err
}

func (s *LedgerServiceImpl) replayed(op domain.TransactionType, key string, start time.Time) {
	s.metrics.IncIdempotentReplay(op)
	s.metrics.ObserveOperation(op, ports.OutcomeReplayed, time.Since(start))
	s.log.Info().Str("type", string(op)).Str("key", key).Msg("idempotent replay")
}

// backoff grows linearly with the attempt number plus up to one base of jitter.
func (s *LedgerServiceImpl) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	return time.Duration(attempt)*base + rand.N(base)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrServiceUnavailable(err)
	}
	return apperror.InternalError(err)
}

func outcomeFor(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < 500 {
		return ports.OutcomeRejected
	}
	return ports.OutcomeError
}
