package position

import (
	"testing"

	"backtest_accounts/internal/core"

	"github.com/shopspring/decimal"
)

func futureOpen(price, quantity, cost float64) *core.Trade {
	trade := openTrade(futureID, price, quantity)
	trade.TransactionCost = decimal.NewFromFloat(cost)
	return trade
}

func TestFuturePosition_OpenMovesOnlyFees(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)

	delta := mustApply(t, p, futureOpen(3500, 2, 12))
	assertDecimal(t, "cash delta", delta, -12)
	assertDecimal(t, "quantity", p.Quantity(), 2)
	assertDecimal(t, "avg price", p.AvgPrice(), 3500)
	assertDecimal(t, "transaction cost", p.TransactionCost(), 12)
}

func TestFuturePosition_CloseRealizesPnl(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	mustApply(t, p, futureOpen(3500, 2, 0))
	p.UpdateLastPrice(decimal.NewFromInt(3500))
	mustSettle(t, p, day(t, "2024-01-02"))

	p.UpdateLastPrice(decimal.NewFromInt(3520))
	trade := closeTrade(futureID, 3520, 1)
	trade.TransactionCost = decimal.NewFromInt(6)
	delta := mustApply(t, p, trade)

	// (3520 - 3500) * 1 * 300 - 6 fees
	assertDecimal(t, "cash delta", delta, 5994)
	assertDecimal(t, "old quantity", p.OldQuantity(), 1)
	assertDecimal(t, "quantity", p.Quantity(), 1)
}

func TestFuturePosition_SettlementMarksToMarket(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	mustApply(t, p, futureOpen(3495, 2, 0))
	p.UpdateLastPrice(decimal.NewFromInt(3512))

	result := mustSettle(t, p, day(t, "2024-01-02"))
	// 2 * (3512 - 3495) * 300
	assertDecimal(t, "settlement cash", result.CashDelta, 10200)
	assertDecimal(t, "avg price resets", p.AvgPrice(), 3512)
	assertDecimal(t, "prev close", p.PrevClose(), 3512)
	assertDecimal(t, "equity after settle", p.Equity(), 0)
}

func TestFuturePosition_ShortDirectionFactor(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionShort)
	trade := futureOpen(3500, 2, 0)
	trade.Side = core.SideSell
	mustApply(t, p, trade)
	p.UpdateLastPrice(decimal.NewFromInt(3480))

	// Price down, short profits: 2 * (3500 - 3480) * 300
	assertDecimal(t, "equity", p.Equity(), 12000)
	assertDecimal(t, "pnl", p.PnL(), 12000)
}

func TestFuturePosition_CalcCloseTodayAmount(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	mustApply(t, p, futureOpen(3500, 3, 0))
	p.UpdateLastPrice(decimal.NewFromInt(3500))
	mustSettle(t, p, day(t, "2024-01-02"))
	mustApply(t, p, futureOpen(3510, 2, 0))

	assertDecimal(t, "within old", p.CalcCloseTodayAmount(decimal.NewFromInt(2)), 0)
	assertDecimal(t, "spills into today", p.CalcCloseTodayAmount(decimal.NewFromInt(4)), 1)
	assertDecimal(t, "all today", p.CalcCloseTodayAmount(decimal.NewFromInt(5)), 2)
}

func TestFuturePosition_CloseTodayReducesTodayOnly(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	mustApply(t, p, futureOpen(3500, 1, 0))
	p.UpdateLastPrice(decimal.NewFromInt(3500))
	mustSettle(t, p, day(t, "2024-01-02"))
	mustApply(t, p, futureOpen(3510, 2, 0))

	trade := closeTrade(futureID, 3515, 1)
	trade.PositionEffect = core.EffectCloseToday
	mustApply(t, p, trade)

	assertDecimal(t, "old quantity", p.OldQuantity(), 1)
	assertDecimal(t, "today quantity", p.TodayQuantity(), 1)
}

func TestFuturePosition_ClosableSubtractsOpenOrders(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	mustApply(t, p, futureOpen(3500, 2, 0))
	mustSettle(t, p, day(t, "2024-01-02"))
	mustApply(t, p, futureOpen(3510, 3, 0))

	p.SetOpenOrders([]*core.Order{
		{OrderID: "o-1", PositionEffect: core.EffectClose, Quantity: decimal.NewFromInt(1)},
		{OrderID: "o-2", PositionEffect: core.EffectCloseToday, Quantity: decimal.NewFromInt(1)},
		{OrderID: "o-3", PositionEffect: core.EffectExercise, Quantity: decimal.NewFromInt(1)},
	})

	// All three closing effects count against closable; only CLOSE_TODAY
	// counts against today's closable.
	assertDecimal(t, "closable", p.Closable(), 2)
	assertDecimal(t, "today closable", p.TodayClosable(), 2)
}

func TestFuturePosition_MarginFollowsMultiplier(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	mustApply(t, p, futureOpen(3500, 2, 0))
	p.UpdateLastPrice(decimal.NewFromInt(3500))

	// 2 * 3500 * 300 * 0.12
	assertDecimal(t, "margin", p.Margin(), 252000)

	e.SetMarginMultiplier(decimal.NewFromInt(2))
	assertDecimal(t, "margin after multiplier change", p.Margin(), 504000)

	// Repeated reconfiguration keeps tracking, including back to the start.
	e.SetMarginMultiplier(decimal.NewFromFloat(0.5))
	assertDecimal(t, "margin after second change", p.Margin(), 126000)
	e.SetMarginMultiplier(decimal.NewFromInt(1))
	assertDecimal(t, "margin restored", p.Margin(), 252000)
}

func TestFuturePosition_DelistForceClose(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, delistFutID, core.DirectionLong)
	trade := futureOpen(3400, 2, 0)
	trade.OrderBookID = delistFutID
	mustApply(t, p, trade)
	p.UpdateLastPrice(decimal.NewFromInt(3410))

	result := mustSettle(t, p, day(t, "2024-01-04"))
	// The day's pnl is still settled before the force close.
	assertDecimal(t, "settlement cash", result.CashDelta, 6000)
	assertDecimal(t, "quantity", p.Quantity(), 0)
}

func TestFuturePosition_EmptySettlementKeepsMarks(t *testing.T) {
	e := newTestEnv(t, nil)
	p := NewFuturePosition(e, futureID, core.DirectionLong)
	p.SetState(&core.PositionState{
		OrderBookID: futureID,
		Direction:   core.DirectionLong,
		AvgPrice:    decimal.NewFromInt(3500),
		PrevClose:   decimal.NewFromInt(3490),
		LastPrice:   decimal.NewFromInt(3510),
	})

	result := mustSettle(t, p, day(t, "2024-01-02"))
	assertDecimal(t, "settlement cash", result.CashDelta, 0)
	assertDecimal(t, "avg price untouched", p.AvgPrice(), 3500)
	assertDecimal(t, "prev close untouched", p.PrevClose(), 3490)
}

func TestFuturePosition_BidirectionalRecordsAreIndependent(t *testing.T) {
	e := newTestEnv(t, nil)
	long := NewFuturePosition(e, futureID, core.DirectionLong)
	short := NewFuturePosition(e, futureID, core.DirectionShort)

	mustApply(t, long, futureOpen(3500, 3, 0))
	shortOpen := futureOpen(3505, 2, 0)
	shortOpen.Side = core.SideSell
	mustApply(t, short, shortOpen)

	assertDecimal(t, "long quantity", long.Quantity(), 3)
	assertDecimal(t, "short quantity", short.Quantity(), 2)

	price := decimal.NewFromInt(3510)
	long.UpdateLastPrice(price)
	short.UpdateLastPrice(price)

	// 3 * 3510 * 300 * 0.12 and 2 * 3510 * 300 * 0.12
	assertDecimal(t, "long margin", long.Margin(), 379080)
	assertDecimal(t, "short margin", short.Margin(), 252720)
}
