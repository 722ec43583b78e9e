// Package env carries the per-run environment handed to every position and
// proxy. It replaces hidden global state with an explicit dependency so tests
// can substitute fakes.
package env

import (
	"sync"

	"backtest_accounts/internal/config"
	"backtest_accounts/internal/core"

	"github.com/shopspring/decimal"
)

// AccountType keys portfolio-level aggregates for ValuePercent lookups.
type AccountType string

const (
	AccountTypeStock  AccountType = "STOCK"
	AccountTypeFuture AccountType = "FUTURE"
)

// Environment is read-mostly per simulation run: the data source, the account
// policies, and the global margin multiplier. Positions keep a reference and
// never mutate it.
type Environment struct {
	Data   core.IDataSource
	Logger core.ILogger
	Policy config.AccountsConfig

	mu               sync.RWMutex
	marginMultiplier decimal.Decimal

	// TotalValue reports the total value of one sub-portfolio, used for
	// ValuePercent. Nil means no aggregates are available.
	TotalValue func(accountType AccountType) decimal.Decimal
}

// New builds an environment from a data source, logger and config.
func New(data core.IDataSource, logger core.ILogger, cfg *config.Config) *Environment {
	return &Environment{
		Data:             data,
		Logger:           logger,
		Policy:           cfg.Accounts,
		marginMultiplier: cfg.MarginMultiplier(),
	}
}

// MarginMultiplier returns the current global margin multiplier.
func (e *Environment) MarginMultiplier() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.marginMultiplier
}

// SetMarginMultiplier reconfigures the multiplier mid-run. Cached margin
// rates compare against the current value on every read, so the change takes
// effect without the environment tracking individual position records.
func (e *Environment) SetMarginMultiplier(m decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marginMultiplier = m
}

// PortfolioValue resolves a sub-portfolio total value, zero when absent.
func (e *Environment) PortfolioValue(accountType AccountType) decimal.Decimal {
	if e.TotalValue == nil {
		return decimal.Zero
	}
	return e.TotalValue(accountType)
}
