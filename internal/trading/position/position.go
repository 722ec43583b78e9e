// Package position implements the per-instrument accounting records of the
// simulated portfolio: quantity, cost basis, realized and unrealized pnl, and
// the cash effects of the daily lifecycle (before-trading adjustments,
// intraday trades, end-of-day settlement).
package position

import (
	"time"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	"backtest_accounts/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// SettlementResult is the discriminated outcome of a settlement call. A non-nil
// SubstituteTrade means the instrument converted into a successor and the
// caller must apply the trade to a fresh position for that successor.
type SettlementResult struct {
	CashDelta       decimal.Decimal
	SubstituteTrade *core.Trade
}

// HasSubstitution reports whether the caller must open a successor position.
func (r SettlementResult) HasSubstitution() bool {
	return r.SubstituteTrade != nil
}

// Position is the lifecycle contract shared by both instrument classes.
// All mutating calls must be serialized by the caller; read accessors are safe
// to call concurrently with each other but not alongside a mutation.
type Position interface {
	OrderBookID() string
	Direction() core.Direction
	Quantity() decimal.Decimal
	OldQuantity() decimal.Decimal
	TodayQuantity() decimal.Decimal
	LogicalOldQuantity() decimal.Decimal
	AvgPrice() decimal.Decimal
	PrevClose() decimal.Decimal
	LastPrice() decimal.Decimal
	UpdateLastPrice(price decimal.Decimal)
	TransactionCost() decimal.Decimal
	NonClosable() decimal.Decimal
	Closable() decimal.Decimal
	TodayClosable() decimal.Decimal
	MarketValue() decimal.Decimal
	Margin() decimal.Decimal
	Equity() decimal.Decimal
	PnL() decimal.Decimal
	TradingPnl() decimal.Decimal
	PositionPnl() decimal.Decimal

	SetOpenOrders(orders []*core.Order)

	// BeforeTrading applies pre-market corporate actions and returns the
	// resulting cash delta.
	BeforeTrading(date time.Time) (decimal.Decimal, error)
	// ApplyTrade mutates the position for one execution and returns the cash
	// delta for the owning account.
	ApplyTrade(trade *core.Trade) (decimal.Decimal, error)
	// Settlement rolls today's quantity into old, resolves delisting, and
	// returns the end-of-day cash delta.
	Settlement(date time.Time) (SettlementResult, error)
	// CalcCloseTodayAmount returns the portion of a closing trade that must
	// be attributed to quantity opened today.
	CalcCloseTodayAmount(quantity decimal.Decimal) decimal.Decimal

	GetState() *core.PositionState
	SetState(state *core.PositionState)
}

// base carries the fields and arithmetic shared by both instrument classes.
type base struct {
	env         *env.Environment
	orderBookID string
	direction   core.Direction
	logger      core.ILogger

	oldQuantity        decimal.Decimal
	todayQuantity      decimal.Decimal
	logicalOldQuantity decimal.Decimal
	avgPrice           decimal.Decimal
	tradeCost          decimal.Decimal
	transactionCost    decimal.Decimal
	nonClosable        decimal.Decimal
	prevClose          decimal.Decimal
	lastPrice          decimal.Decimal

	openOrders []*core.Order

	instrumentResolved bool
	instrument         *core.Instrument
}

func newBase(e *env.Environment, orderBookID string, direction core.Direction) base {
	return base{
		env:         e,
		orderBookID: orderBookID,
		direction:   direction,
		logger:      e.Logger.WithField("component", "position").WithField("order_book_id", orderBookID),
	}
}

func (b *base) OrderBookID() string {
	return b.orderBookID
}

func (b *base) Direction() core.Direction {
	return b.direction
}

func (b *base) Quantity() decimal.Decimal {
	return b.oldQuantity.Add(b.todayQuantity)
}

func (b *base) OldQuantity() decimal.Decimal {
	return b.oldQuantity
}

func (b *base) TodayQuantity() decimal.Decimal {
	return b.todayQuantity
}

func (b *base) LogicalOldQuantity() decimal.Decimal {
	return b.logicalOldQuantity
}

func (b *base) AvgPrice() decimal.Decimal {
	return b.avgPrice
}

func (b *base) PrevClose() decimal.Decimal {
	return b.prevClose
}

func (b *base) LastPrice() decimal.Decimal {
	return b.lastPrice
}

func (b *base) UpdateLastPrice(price decimal.Decimal) {
	b.lastPrice = price
}

func (b *base) TransactionCost() decimal.Decimal {
	return b.transactionCost
}

func (b *base) NonClosable() decimal.Decimal {
	return b.nonClosable
}

func (b *base) SetOpenOrders(orders []*core.Order) {
	b.openOrders = orders
}

// pendingCloseQuantity sums currently open orders whose effect reduces the
// position.
func (b *base) pendingCloseQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.openOrders {
		if o.PositionEffect.IsClosing() {
			total = total.Add(o.Quantity)
		}
	}
	return total
}

func (b *base) pendingCloseTodayQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.openOrders {
		if o.PositionEffect == core.EffectCloseToday {
			total = total.Add(o.Quantity)
		}
	}
	return total
}

// Closable is the quantity that may still be closed today. In T+1 markets the
// quantity opened today is excluded.
func (b *base) Closable() decimal.Decimal {
	closable := b.Quantity().Sub(b.pendingCloseQuantity())
	if b.env.Policy.TPlusEnabled {
		closable = closable.Sub(b.nonClosable)
	}
	return closable
}

// TodayClosable is today's quantity not yet claimed by open close-today orders.
func (b *base) TodayClosable() decimal.Decimal {
	return b.todayQuantity.Sub(b.pendingCloseTodayQuantity())
}

// resolveInstrument looks up static data once and caches it for the life of
// the record.
func (b *base) resolveInstrument() *core.Instrument {
	if !b.instrumentResolved {
		b.instrument = b.env.Data.Instrument(b.orderBookID)
		b.instrumentResolved = true
	}
	return b.instrument
}

// applyOpen folds an OPEN execution into the average price and today quantity.
func (b *base) applyOpen(trade *core.Trade) {
	b.avgPrice = tradingutils.WeightedAvgPrice(b.Quantity(), b.avgPrice, trade.Quantity, trade.Price)
	b.todayQuantity = b.todayQuantity.Add(trade.Quantity)
	b.tradeCost = b.tradeCost.Add(trade.Price.Mul(trade.Quantity))
}

// applyClose reduces today then old quantity: the excess of the closed amount
// over yesterday's holding comes out of today's opens.
func (b *base) applyClose(quantity decimal.Decimal) {
	b.todayQuantity = b.todayQuantity.Sub(tradingutils.MaxDecimal(quantity.Sub(b.oldQuantity), decimal.Zero))
	b.oldQuantity = b.oldQuantity.Sub(tradingutils.MinDecimal(quantity, b.oldQuantity))
}

// rollSettlement is the state transition every settlement performs: today
// rolls into old, the logical-old snapshot is taken, and the per-day
// accumulators reset.
func (b *base) rollSettlement() {
	b.oldQuantity = b.oldQuantity.Add(b.todayQuantity)
	b.logicalOldQuantity = b.oldQuantity
	b.todayQuantity = decimal.Zero
	b.tradeCost = decimal.Zero
	b.transactionCost = decimal.Zero
	b.nonClosable = decimal.Zero
}

func (b *base) GetState() *core.PositionState {
	return &core.PositionState{
		OrderBookID:        b.orderBookID,
		Direction:          b.direction,
		OldQuantity:        b.oldQuantity,
		TodayQuantity:      b.todayQuantity,
		LogicalOldQuantity: b.logicalOldQuantity,
		AvgPrice:           b.avgPrice,
		TradeCost:          b.tradeCost,
		TransactionCost:    b.transactionCost,
		NonClosable:        b.nonClosable,
		PrevClose:          b.prevClose,
		LastPrice:          b.lastPrice,
	}
}

func (b *base) SetState(state *core.PositionState) {
	b.oldQuantity = state.OldQuantity
	b.todayQuantity = state.TodayQuantity
	b.logicalOldQuantity = state.LogicalOldQuantity
	b.avgPrice = state.AvgPrice
	b.tradeCost = state.TradeCost
	b.transactionCost = state.TransactionCost
	b.nonClosable = state.NonClosable
	b.prevClose = state.PrevClose
	b.lastPrice = state.LastPrice
}

// NewFromState rebuilds a position of the right class from a snapshot.
func NewFromState(e *env.Environment, state *core.PositionState) Position {
	var p Position
	inst := e.Data.Instrument(state.OrderBookID)
	if inst != nil && inst.Type == core.InstrumentFuture {
		p = NewFuturePosition(e, state.OrderBookID, state.Direction)
	} else {
		p = NewStockPosition(e, state.OrderBookID, state.Direction)
	}
	p.SetState(state)
	return p
}
