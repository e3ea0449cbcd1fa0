package memory

import (
	"context"
	"fmt"
	"sort"

	"micro-savings-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a WalletRepo over the store.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	key := walletKey{w.UserID, w.Currency}
	r.s.mu.RLock()
	_, taken := r.s.walletIndex[key]
	r.s.mu.RUnlock()
	if !taken {
		for _, ww := range mt.walletWrites {
			if ww.created && ww.wallet.UserID == w.UserID && ww.wallet.Currency == w.Currency {
				taken = true
				break
			}
		}
	}
	if taken {
		return fmt.Errorf("insert wallet: %w", domain.ErrDuplicateWallet)
	}
	mt.stageWallet(&walletWrite{baseVersion: w.Version, wallet: *w, created: true})
	return nil
}

func (r *WalletRepo) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.committed(userID, currency), nil
}

// GetByUserAndCurrencyTx sees the transaction's own staged writes.
func (r *WalletRepo) GetByUserAndCurrencyTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	for _, ww := range mt.walletWrites {
		if ww.wallet.UserID == userID && ww.wallet.Currency == currency {
			w := ww.wallet
			return &w, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.committed(userID, currency), nil
}

// MutateBalance checks the guards against the latest visible version now;
// Commit re-checks the version against committed state.
func (r *WalletRepo) MutateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}

	ww, staged := mt.walletWrites[walletID]
	if !staged {
		r.s.mu.RLock()
		current, ok := r.s.wallets[walletID]
		r.s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("wallet %s: %w", walletID, domain.ErrWalletNotFound)
		}
		ww = &walletWrite{baseVersion: current.Version, wallet: current}
	}

	if ww.wallet.Version != expectedVersion {
		return nil, fmt.Errorf("wallet %s at version %d, expected %d: %w",
			walletID, ww.wallet.Version, expectedVersion, domain.ErrVersionConflict)
	}
	next := ww.wallet.Balance.Add(delta)
	if next.IsNegative() {
		return nil, fmt.Errorf("wallet %s: %w", walletID, domain.ErrInsufficientBalance)
	}

	ww.wallet.Balance = next
	ww.wallet.Version++
	ww.wallet.UpdatedAt = r.s.now()
	mt.stageWallet(ww)

	w := ww.wallet
	return &w, nil
}

func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	r.s.mu.RLock()
	var wallets []domain.Wallet
	for _, w := range r.s.wallets {
		if w.UserID == userID {
			wallets = append(wallets, w)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Currency < wallets[j].Currency })
	return wallets, nil
}

func (r *WalletRepo) ListAll(ctx context.Context) ([]domain.Wallet, error) {
	r.s.mu.RLock()
	wallets := make([]domain.Wallet, 0, len(r.s.wallets))
	for _, w := range r.s.wallets {
		wallets = append(wallets, w)
	}
	r.s.mu.RUnlock()

	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].UserID != wallets[j].UserID {
			return wallets[i].UserID.String() < wallets[j].UserID.String()
		}
		return wallets[i].Currency < wallets[j].Currency
	})
	return wallets, nil
}

func (r *WalletRepo) SumByCurrency(ctx context.Context) ([]domain.CurrencyBalance, error) {
	r.s.mu.RLock()
	byCurrency := make(map[string]*domain.CurrencyBalance)
	for _, w := range r.s.wallets {
		cb, ok := byCurrency[w.Currency]
		if !ok {
			cb = &domain.CurrencyBalance{Currency: w.Currency, Total: decimal.Zero}
			byCurrency[w.Currency] = cb
		}
		cb.Total = cb.Total.Add(w.Balance)
		cb.Wallets++
	}
	r.s.mu.RUnlock()

	totals := make([]domain.CurrencyBalance, 0, len(byCurrency))
	for _, cb := range byCurrency {
		totals = append(totals, *cb)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Currency < totals[j].Currency })
	return totals, nil
}

// committed runs with s.mu held.
func (r *WalletRepo) committed(userID uuid.UUID, currency string) *domain.Wallet {
	id, ok := r.s.walletIndex[walletKey{userID, currency}]
	if !ok {
		return nil
	}
	w := r.s.wallets[id]
	return &w
}
