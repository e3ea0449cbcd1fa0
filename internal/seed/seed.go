// Package seed loads demo account holders so a fresh deployment has
// balances to move around.
package seed

import (
	"context"
	"fmt"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Account describes one demo user and their opening balances.
type Account struct {
	Email    string
	Name     string
	Role     domain.UserRole
	Balances map[string]string // currency -> opening balance
}

// DemoAccounts are the accounts loaded by Run.
var DemoAccounts = []Account{
	{
		Email:    "alice@example.com",
		Name:     "Alice Johnson",
		Role:     domain.UserRoleUser,
		Balances: map[string]string{"USD": "5000.00", "EUR": "3500.50"},
	},
	{
		Email:    "bob@example.com",
		Name:     "Bob Smith",
		Role:     domain.UserRoleUser,
		Balances: map[string]string{"USD": "2500.75", "GBP": "1800.00"},
	},
	{
		Email:    "admin@example.com",
		Name:     "Admin User",
		Role:     domain.UserRoleAdmin,
		Balances: map[string]string{"USD": "100000.00"},
	},
}

// UserID returns the stable id assigned to a seeded email.
func UserID(email string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("micro-savings-wallet:user:"+email))
}

// Run creates every account in accounts that does not exist yet. Existing
// users are left untouched, so Run is safe to call on every startup.
func Run(ctx context.Context, users ports.UserRepository, wallets ports.WalletRepository, transactor ports.DBTransactor, accounts []Account, log zerolog.Logger) (int, error) {
	created := 0
	for _, acc := range accounts {
		existing, err := users.GetByEmail(ctx, acc.Email)
		if err != nil {
			return created, fmt.Errorf("seed lookup %s: %w", acc.Email, err)
		}
		if existing != nil {
			continue
		}
		if err := createAccount(ctx, users, wallets, transactor, acc); err != nil {
			return created, err
		}
		created++
		log.Info().Str("email", acc.Email).Int("wallets", len(acc.Balances)).Msg("seeded demo user")
	}
	return created, nil
}

func createAccount(ctx context.Context, users ports.UserRepository, wallets ports.WalletRepository, transactor ports.DBTransactor, acc Account) error {
	now := domain.Now()
	user := &domain.User{
		ID:        UserID(acc.Email),
		Email:     acc.Email,
		Name:      acc.Name,
		Role:      acc.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := users.Create(ctx, tx, user); err != nil {
		return fmt.Errorf("seed user %s: %w", acc.Email, err)
	}
	for currency, raw := range acc.Balances {
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("seed balance %s %s: %w", acc.Email, currency, err)
		}
		w := domain.NewWallet(user.ID, currency, now)
		w.Balance = balance
		if err := wallets.Create(ctx, tx, w); err != nil {
			return fmt.Errorf("seed wallet %s %s: %w", acc.Email, currency, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("seed commit %s: %w", acc.Email, err)
	}
	return nil
}
