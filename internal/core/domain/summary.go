package domain

import "github.com/shopspring/decimal"

// SystemSummary aggregates platform-wide figures for the admin dashboard.
// TotalWalletBalance is a plain sum across all currencies; BalancesByCurrency
// carries the per-currency breakdown.
type SystemSummary struct {
	TotalUsers         int64             `json:"total_users"`
	TotalWalletBalance decimal.Decimal   `json:"total_wallet_balance"`
	TotalTransfers     int64             `json:"total_transfers"`
	TotalWithdrawals   int64             `json:"total_withdrawals"`
	TotalDeposits      int64             `json:"total_deposits"`
	BalancesByCurrency []CurrencyBalance `json:"balances_by_currency"`
}

// CurrencyBalance is the sum of all wallet balances held in one currency.
type CurrencyBalance struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Wallets  int64           `json:"wallets"`
}
