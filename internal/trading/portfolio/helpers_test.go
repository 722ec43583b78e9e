package portfolio

import (
	"testing"
	"time"

	"backtest_accounts/internal/config"
	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	"backtest_accounts/internal/marketdata"
	"backtest_accounts/pkg/logging"

	"github.com/shopspring/decimal"
)

const (
	stockID       = "000001.XSHE"
	delistStockID = "000333.XSHE"
	successorID   = "000333S.XSHE"
	futureID      = "IF2403"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t.Fatalf("bad date %q: %v", raw, err)
	}
	return core.Day(parsed)
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *marketdata.Source)) *env.Environment {
	t.Helper()
	cfg := config.DefaultConfig()

	source := marketdata.NewSource()
	source.SetCalendar([]time.Time{
		day(t, "2024-01-02"),
		day(t, "2024-01-03"),
		day(t, "2024-01-04"),
		day(t, "2024-01-05"),
		day(t, "2024-01-08"),
	})
	source.AddInstrument(&core.Instrument{
		OrderBookID: stockID,
		Type:        core.InstrumentEquity,
		MarketTPlus: 1,
	})
	source.AddInstrument(&core.Instrument{
		OrderBookID:  delistStockID,
		Type:         core.InstrumentEquity,
		MarketTPlus:  1,
		DeListedDate: day(t, "2024-01-04"),
	})
	source.AddInstrument(&core.Instrument{
		OrderBookID: successorID,
		Type:        core.InstrumentEquity,
		MarketTPlus: 1,
	})
	source.AddInstrument(&core.Instrument{
		OrderBookID:        futureID,
		Type:               core.InstrumentFuture,
		ContractMultiplier: decimal.NewFromInt(300),
		MarginRate:         decimal.NewFromFloat(0.12),
	})

	if mutate != nil {
		mutate(cfg, source)
	}
	return env.New(source, logging.NewLogger(logging.ErrorLevel), cfg)
}

func newTestAccount(t *testing.T, mutate func(*config.Config, *marketdata.Source)) *Account {
	t.Helper()
	e := newTestEnv(t, mutate)
	return NewAccount(e, decimal.NewFromInt(1000000), nil)
}

func trade(orderBookID string, side core.Side, effect core.PositionEffect, price, quantity, cost float64) *core.Trade {
	return &core.Trade{
		OrderID:         "t-1",
		OrderBookID:     orderBookID,
		Price:           decimal.NewFromFloat(price),
		Quantity:        decimal.NewFromFloat(quantity),
		Side:            side,
		PositionEffect:  effect,
		TransactionCost: decimal.NewFromFloat(cost),
	}
}

func mustApplyTrade(t *testing.T, a *Account, tr *core.Trade) {
	t.Helper()
	if err := a.ApplyTrade(tr); err != nil {
		t.Fatalf("ApplyTrade(%s %s %s): %v", tr.Side, tr.PositionEffect, tr.OrderBookID, err)
	}
}

func mustSettleAccount(t *testing.T, a *Account, date time.Time) {
	t.Helper()
	if err := a.Settlement(date); err != nil {
		t.Fatalf("Settlement(%s): %v", date.Format("2006-01-02"), err)
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want float64) {
	t.Helper()
	if !got.Equal(decimal.NewFromFloat(want)) {
		t.Fatalf("%s = %s, want %v", name, got, want)
	}
}
