// Package portfolio aggregates position records into an account: it owns the
// cash balance, routes trades to the right per-direction record, drives the
// daily lifecycle, and exposes read-only reporting proxies.
package portfolio

import (
	"sync"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	"backtest_accounts/internal/trading/position"

	"github.com/shopspring/decimal"
)

// PositionProxy is the stable read-only reporting view over one or two
// underlying position records. Every field is derived on demand, never stored,
// so the view cannot drift from its sources.
type PositionProxy interface {
	Type() string
	OrderBookID() string
	Quantity() decimal.Decimal
	AvgPrice() decimal.Decimal
	MarketValue() decimal.Decimal
	Margin() decimal.Decimal
	Equity() decimal.Decimal
	PnL() decimal.Decimal
	DailyPnl() decimal.Decimal
	TradingPnl() decimal.Decimal
	PositionPnl() decimal.Decimal
	TransactionCost() decimal.Decimal
}

// deprecatedAliases maps retired reporting field names to their replacements.
// Alias readers forward to the new field after a one-time warning.
var deprecatedAliases = map[string]string{
	"holding_pnl":            "position_pnl",
	"buy_holding_pnl":        "buy_position_pnl",
	"sell_holding_pnl":       "sell_position_pnl",
	"realized_pnl":           "trading_pnl",
	"buy_realized_pnl":       "buy_trading_pnl",
	"sell_realized_pnl":      "sell_trading_pnl",
	"buy_avg_holding_price":  "buy_avg_open_price",
	"sell_avg_holding_price": "sell_avg_open_price",
}

// deprecationWarner emits at most one warning per retired field name.
type deprecationWarner struct {
	logger core.ILogger
	mu     sync.Mutex
	warned map[string]bool
}

func newDeprecationWarner(logger core.ILogger) *deprecationWarner {
	return &deprecationWarner{logger: logger, warned: make(map[string]bool)}
}

func (w *deprecationWarner) warn(oldName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.warned[oldName] {
		return
	}
	w.warned[oldName] = true
	w.logger.Warn("deprecated reporting field",
		"field", oldName,
		"replacement", deprecatedAliases[oldName])
}

// StockPositionProxy is the single-direction equity view.
type StockPositionProxy struct {
	env    *env.Environment
	long   *position.StockPosition
	warner *deprecationWarner
}

// NewStockPositionProxy wraps a long equity record.
func NewStockPositionProxy(e *env.Environment, long *position.StockPosition) *StockPositionProxy {
	return &StockPositionProxy{
		env:    e,
		long:   long,
		warner: newDeprecationWarner(e.Logger.WithField("component", "position_proxy")),
	}
}

func (p *StockPositionProxy) Type() string                     { return "STOCK" }
func (p *StockPositionProxy) OrderBookID() string              { return p.long.OrderBookID() }
func (p *StockPositionProxy) Quantity() decimal.Decimal        { return p.long.Quantity() }
func (p *StockPositionProxy) AvgPrice() decimal.Decimal        { return p.long.AvgPrice() }
func (p *StockPositionProxy) LastPrice() decimal.Decimal       { return p.long.LastPrice() }
func (p *StockPositionProxy) MarketValue() decimal.Decimal     { return p.long.MarketValue() }
func (p *StockPositionProxy) Margin() decimal.Decimal          { return p.long.Margin() }
func (p *StockPositionProxy) Equity() decimal.Decimal          { return p.long.Equity() }
func (p *StockPositionProxy) PnL() decimal.Decimal             { return p.long.PnL() }
func (p *StockPositionProxy) TradingPnl() decimal.Decimal      { return p.long.TradingPnl() }
func (p *StockPositionProxy) PositionPnl() decimal.Decimal     { return p.long.PositionPnl() }
func (p *StockPositionProxy) TransactionCost() decimal.Decimal { return p.long.TransactionCost() }
func (p *StockPositionProxy) OldQuantity() decimal.Decimal     { return p.long.OldQuantity() }
func (p *StockPositionProxy) TodayQuantity() decimal.Decimal   { return p.long.TodayQuantity() }
func (p *StockPositionProxy) NonClosable() decimal.Decimal     { return p.long.NonClosable() }

// DailyPnl is the day's total: price movement on carried quantity plus pnl on
// trades since the last settlement.
func (p *StockPositionProxy) DailyPnl() decimal.Decimal {
	return p.PositionPnl().Add(p.TradingPnl())
}

// Sellable is the quantity that can still be sold today.
func (p *StockPositionProxy) Sellable() decimal.Decimal {
	return p.long.Closable()
}

// DividendReceivable is the pending dividend awaiting its payable date.
func (p *StockPositionProxy) DividendReceivable() decimal.Decimal {
	return p.long.DividendReceivable()
}

// ValuePercent is this holding's share of the equity sub-portfolio's total
// value, zero when that sub-portfolio is absent or worthless.
func (p *StockPositionProxy) ValuePercent() decimal.Decimal {
	totalValue := p.env.PortfolioValue(env.AccountTypeStock)
	if totalValue.IsZero() {
		return decimal.Zero
	}
	return p.MarketValue().Div(totalValue)
}

// HoldingPnl is a deprecated alias of PositionPnl.
func (p *StockPositionProxy) HoldingPnl() decimal.Decimal {
	p.warner.warn("holding_pnl")
	return p.PositionPnl()
}

// RealizedPnl is a deprecated alias of TradingPnl.
func (p *StockPositionProxy) RealizedPnl() decimal.Decimal {
	p.warner.warn("realized_pnl")
	return p.TradingPnl()
}

// FuturePositionProxy merges the long and short records of one instrument
// into paired buy_*/sell_* reporting fields.
type FuturePositionProxy struct {
	env    *env.Environment
	long   *position.FuturePosition
	short  *position.FuturePosition
	warner *deprecationWarner
}

// NewFuturePositionProxy wraps the two per-direction records of an instrument.
func NewFuturePositionProxy(e *env.Environment, long, short *position.FuturePosition) *FuturePositionProxy {
	return &FuturePositionProxy{
		env:    e,
		long:   long,
		short:  short,
		warner: newDeprecationWarner(e.Logger.WithField("component", "position_proxy")),
	}
}

func (p *FuturePositionProxy) Type() string        { return "FUTURE" }
func (p *FuturePositionProxy) OrderBookID() string { return p.long.OrderBookID() }

// ContractMultiplier and MarginRate are identical on both sides.
func (p *FuturePositionProxy) ContractMultiplier() decimal.Decimal {
	return p.long.ContractMultiplier()
}

func (p *FuturePositionProxy) MarginRate() decimal.Decimal {
	return p.long.MarginRate()
}

// Quantity is the net exposure: long minus short.
func (p *FuturePositionProxy) Quantity() decimal.Decimal {
	return p.BuyQuantity().Sub(p.SellQuantity())
}

// AvgPrice reports the dominant side's open price.
func (p *FuturePositionProxy) AvgPrice() decimal.Decimal {
	if p.SellQuantity().GreaterThan(p.BuyQuantity()) {
		return p.short.AvgPrice()
	}
	return p.long.AvgPrice()
}

func (p *FuturePositionProxy) MarketValue() decimal.Decimal {
	return p.long.MarketValue().Sub(p.short.MarketValue())
}

func (p *FuturePositionProxy) Equity() decimal.Decimal {
	return p.long.Equity().Add(p.short.Equity())
}

func (p *FuturePositionProxy) PnL() decimal.Decimal {
	return p.long.PnL().Add(p.short.PnL())
}

func (p *FuturePositionProxy) TradingPnl() decimal.Decimal {
	return p.long.TradingPnl().Add(p.short.TradingPnl())
}

func (p *FuturePositionProxy) PositionPnl() decimal.Decimal {
	return p.long.PositionPnl().Add(p.short.PositionPnl())
}

func (p *FuturePositionProxy) DailyPnl() decimal.Decimal {
	return p.PositionPnl().Add(p.TradingPnl())
}

func (p *FuturePositionProxy) TransactionCost() decimal.Decimal {
	return p.long.TransactionCost().Add(p.short.TransactionCost())
}

// Margin is the sum of both sides' margin.
func (p *FuturePositionProxy) Margin() decimal.Decimal {
	return p.long.Margin().Add(p.short.Margin())
}

func (p *FuturePositionProxy) BuyMarketValue() decimal.Decimal  { return p.long.MarketValue() }
func (p *FuturePositionProxy) SellMarketValue() decimal.Decimal { return p.short.MarketValue() }
func (p *FuturePositionProxy) BuyPositionPnl() decimal.Decimal  { return p.long.PositionPnl() }
func (p *FuturePositionProxy) SellPositionPnl() decimal.Decimal { return p.short.PositionPnl() }
func (p *FuturePositionProxy) BuyTradingPnl() decimal.Decimal   { return p.long.TradingPnl() }
func (p *FuturePositionProxy) SellTradingPnl() decimal.Decimal  { return p.short.TradingPnl() }
func (p *FuturePositionProxy) BuyPnl() decimal.Decimal          { return p.long.PnL() }
func (p *FuturePositionProxy) SellPnl() decimal.Decimal         { return p.short.PnL() }
func (p *FuturePositionProxy) BuyOldQuantity() decimal.Decimal  { return p.long.OldQuantity() }
func (p *FuturePositionProxy) SellOldQuantity() decimal.Decimal { return p.short.OldQuantity() }
func (p *FuturePositionProxy) BuyMargin() decimal.Decimal       { return p.long.Margin() }
func (p *FuturePositionProxy) SellMargin() decimal.Decimal      { return p.short.Margin() }
func (p *FuturePositionProxy) BuyAvgOpenPrice() decimal.Decimal   { return p.long.AvgPrice() }
func (p *FuturePositionProxy) SellAvgOpenPrice() decimal.Decimal  { return p.short.AvgPrice() }
func (p *FuturePositionProxy) BuyTodayQuantity() decimal.Decimal  { return p.long.TodayQuantity() }
func (p *FuturePositionProxy) SellTodayQuantity() decimal.Decimal { return p.short.TodayQuantity() }

func (p *FuturePositionProxy) BuyDailyPnl() decimal.Decimal {
	return p.BuyPositionPnl().Add(p.BuyTradingPnl())
}

func (p *FuturePositionProxy) SellDailyPnl() decimal.Decimal {
	return p.SellPositionPnl().Add(p.SellTradingPnl())
}

func (p *FuturePositionProxy) BuyQuantity() decimal.Decimal {
	return p.BuyOldQuantity().Add(p.BuyTodayQuantity())
}

func (p *FuturePositionProxy) SellQuantity() decimal.Decimal {
	return p.SellOldQuantity().Add(p.SellTodayQuantity())
}

func (p *FuturePositionProxy) BuyTransactionCost() decimal.Decimal {
	return p.long.TransactionCost()
}

func (p *FuturePositionProxy) SellTransactionCost() decimal.Decimal {
	return p.short.TransactionCost()
}

func (p *FuturePositionProxy) ClosableBuyQuantity() decimal.Decimal {
	return p.long.Closable()
}

func (p *FuturePositionProxy) ClosableSellQuantity() decimal.Decimal {
	return p.short.Closable()
}

func (p *FuturePositionProxy) ClosableTodayBuyQuantity() decimal.Decimal {
	return p.long.TodayClosable()
}

func (p *FuturePositionProxy) ClosableTodaySellQuantity() decimal.Decimal {
	return p.short.TodayClosable()
}

// HoldingPnl is a deprecated alias of PositionPnl.
func (p *FuturePositionProxy) HoldingPnl() decimal.Decimal {
	p.warner.warn("holding_pnl")
	return p.PositionPnl()
}

// BuyHoldingPnl is a deprecated alias of BuyPositionPnl.
func (p *FuturePositionProxy) BuyHoldingPnl() decimal.Decimal {
	p.warner.warn("buy_holding_pnl")
	return p.BuyPositionPnl()
}

// SellHoldingPnl is a deprecated alias of SellPositionPnl.
func (p *FuturePositionProxy) SellHoldingPnl() decimal.Decimal {
	p.warner.warn("sell_holding_pnl")
	return p.SellPositionPnl()
}

// RealizedPnl is a deprecated alias of TradingPnl.
func (p *FuturePositionProxy) RealizedPnl() decimal.Decimal {
	p.warner.warn("realized_pnl")
	return p.TradingPnl()
}

// BuyRealizedPnl is a deprecated alias of BuyTradingPnl.
func (p *FuturePositionProxy) BuyRealizedPnl() decimal.Decimal {
	p.warner.warn("buy_realized_pnl")
	return p.BuyTradingPnl()
}

// SellRealizedPnl is a deprecated alias of SellTradingPnl.
func (p *FuturePositionProxy) SellRealizedPnl() decimal.Decimal {
	p.warner.warn("sell_realized_pnl")
	return p.SellTradingPnl()
}

// BuyAvgHoldingPrice is a deprecated alias of BuyAvgOpenPrice.
func (p *FuturePositionProxy) BuyAvgHoldingPrice() decimal.Decimal {
	p.warner.warn("buy_avg_holding_price")
	return p.BuyAvgOpenPrice()
}

// SellAvgHoldingPrice is a deprecated alias of SellAvgOpenPrice.
func (p *FuturePositionProxy) SellAvgHoldingPrice() decimal.Decimal {
	p.warner.warn("sell_avg_holding_price")
	return p.SellAvgOpenPrice()
}
