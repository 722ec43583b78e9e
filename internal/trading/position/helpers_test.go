package position

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
	delistFutID   = "IF2401"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t.Fatalf("bad date %q: %v", raw, err)
	}
	return core.Day(parsed)
}

// newTestEnv builds an environment over a one-week calendar with one equity
// and one future. mutate can adjust config and reference data before the
// environment is sealed.
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
		day(t, "2024-01-09"),
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
		DeListedDate: day(t, "2024-01-05"),
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
	source.AddInstrument(&core.Instrument{
		OrderBookID:        delistFutID,
		Type:               core.InstrumentFuture,
		ContractMultiplier: decimal.NewFromInt(300),
		MarginRate:         decimal.NewFromFloat(0.12),
		DeListedDate:       day(t, "2024-01-05"),
	})

	if mutate != nil {
		mutate(cfg, source)
	}
	return env.New(source, logging.NewLogger(logging.ErrorLevel), cfg)
}

func openTrade(orderBookID string, price, quantity float64) *core.Trade {
	return &core.Trade{
		OrderID:        "t-open",
		OrderBookID:    orderBookID,
		Price:          decimal.NewFromFloat(price),
		Quantity:       decimal.NewFromFloat(quantity),
		Side:           core.SideBuy,
		PositionEffect: core.EffectOpen,
	}
}

func closeTrade(orderBookID string, price, quantity float64) *core.Trade {
	return &core.Trade{
		OrderID:        "t-close",
		OrderBookID:    orderBookID,
		Price:          decimal.NewFromFloat(price),
		Quantity:       decimal.NewFromFloat(quantity),
		Side:           core.SideSell,
		PositionEffect: core.EffectClose,
	}
}

func mustApply(t *testing.T, p Position, trade *core.Trade) decimal.Decimal {
	t.Helper()
	delta, err := p.ApplyTrade(trade)
	if err != nil {
		t.Fatalf("ApplyTrade(%s %s): %v", trade.PositionEffect, trade.OrderBookID, err)
	}
	return delta
}

func mustSettle(t *testing.T, p Position, date time.Time) SettlementResult {
	t.Helper()
	result, err := p.Settlement(date)
	if err != nil {
		t.Fatalf("Settlement(%s): %v", date.Format("2006-01-02"), err)
	}
	return result
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want float64) {
	t.Helper()
	if !got.Equal(decimal.NewFromFloat(want)) {
		t.Fatalf("%s = %s, want %v", name, got, want)
	}
}
