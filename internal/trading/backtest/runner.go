// Package backtest replays daily bars through an account in trading
// session order and persists a snapshot after every settlement.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	"backtest_accounts/internal/trading/portfolio"

	"github.com/shopspring/decimal"
)

// DailyBar is one trading day of input: closing marks per instrument and
// the executions of the session.
type DailyBar struct {
	Date   time.Time
	Prices map[string]decimal.Decimal
	Trades []*core.Trade
}

type Runner struct {
	env     *env.Environment
	account *portfolio.Account
	store   core.IStateStore
	logger  core.ILogger
}

func NewRunner(e *env.Environment, account *portfolio.Account, store core.IStateStore) *Runner {
	return &Runner{
		env:     e,
		account: account,
		store:   store,
		logger:  e.Logger.WithField("component", "backtest_runner"),
	}
}

// Run replays the bars in order. Each day runs the full lifecycle:
// pre-market corporate actions, price marks, trade application, settlement,
// snapshot persistence.
func (r *Runner) Run(ctx context.Context, bars []DailyBar) error {
	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.runDay(ctx, bar); err != nil {
			return fmt.Errorf("trading day %s: %w", core.Day(bar.Date).Format("2006-01-02"), err)
		}
	}
	return nil
}

func (r *Runner) runDay(ctx context.Context, bar DailyBar) error {
	date := core.Day(bar.Date)

	if err := r.account.BeforeTrading(date); err != nil {
		return err
	}

	for _, orderBookID := range sortedPriceIDs(bar.Prices) {
		r.account.UpdateLastPrice(orderBookID, bar.Prices[orderBookID])
	}

	for _, trade := range bar.Trades {
		if err := r.account.ApplyTrade(trade); err != nil {
			return err
		}
	}

	if err := r.account.Settlement(date); err != nil {
		return err
	}

	if err := r.store.SaveSnapshot(ctx, r.account.Snapshot(date)); err != nil {
		return err
	}

	r.logger.Info("trading day settled",
		"date", date.Format("2006-01-02"),
		"trades", len(bar.Trades),
		"cash", r.account.Cash(),
		"total_value", r.account.TotalValue())
	return nil
}

// Restore rewinds the account to the latest persisted snapshot. It returns
// the snapshot's trading date, zero when nothing was persisted yet.
func (r *Runner) Restore(ctx context.Context) (time.Time, error) {
	snapshot, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if snapshot == nil {
		return time.Time{}, nil
	}
	r.account.Restore(snapshot)
	r.logger.Info("account restored from snapshot",
		"date", snapshot.TradingDate.Format("2006-01-02"),
		"cash", snapshot.Cash)
	return snapshot.TradingDate, nil
}

func sortedPriceIDs(prices map[string]decimal.Decimal) []string {
	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
