package position

import (
	"time"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	apperrors "backtest_accounts/pkg/errors"
	"backtest_accounts/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockPosition is the equity accounting record. Equities never hold a short
// quantity in this model; the engine enforces that as a fatal condition
// instead of clamping.
type StockPosition struct {
	base

	dividendReceivable *core.DividendReceivable
}

// NewStockPosition creates an empty equity record.
func NewStockPosition(e *env.Environment, orderBookID string, direction core.Direction) *StockPosition {
	return &StockPosition{base: newBase(e, orderBookID, direction)}
}

// MarketValue is last price times quantity.
func (p *StockPosition) MarketValue() decimal.Decimal {
	return p.lastPrice.Mul(p.Quantity())
}

// Margin is always zero for equities.
func (p *StockPosition) Margin() decimal.Decimal {
	return decimal.Zero
}

// Equity equals market value for a cash instrument.
func (p *StockPosition) Equity() decimal.Decimal {
	return p.MarketValue()
}

// PnL is the unrealized profit on the open quantity.
func (p *StockPosition) PnL() decimal.Decimal {
	return p.lastPrice.Sub(p.avgPrice).Mul(p.Quantity())
}

// TradingPnl isolates the profit from trades executed since the last
// settlement.
func (p *StockPosition) TradingPnl() decimal.Decimal {
	tradeQuantity := p.todayQuantity.Add(p.oldQuantity.Sub(p.logicalOldQuantity))
	return tradeQuantity.Mul(p.lastPrice).Sub(p.tradeCost)
}

// PositionPnl is the profit on quantity already held as of the prior close,
// driven purely by price movement.
func (p *StockPosition) PositionPnl() decimal.Decimal {
	return p.logicalOldQuantity.Mul(p.lastPrice.Sub(p.prevClose))
}

// DividendReceivable is the pending dividend amount awaiting its payable date.
func (p *StockPosition) DividendReceivable() decimal.Decimal {
	if p.dividendReceivable == nil {
		return decimal.Zero
	}
	return p.dividendReceivable.Amount
}

// BeforeTrading resolves corporate actions in order: dividend book closure
// on the previous trading date, dividend payable release, then splits
// effective today. It returns the net cash delta. Book closure must run
// first so a dividend whose payable date fell back to the ex-dividend date
// pays out in the same call. The payable release runs even at zero quantity
// so a fully sold position still collects its pending dividend.
func (p *StockPosition) BeforeTrading(date time.Time) (decimal.Decimal, error) {
	if p.direction != core.DirectionLong {
		return decimal.Zero, apperrors.NewPositionError(p.orderBookID, apperrors.ErrShortStockPosition)
	}
	if !p.Quantity().IsZero() {
		if err := p.handleDividendBookClosure(date); err != nil {
			return decimal.Zero, err
		}
	}
	deltaCash, err := p.handleDividendPayable(date)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.Quantity().IsZero() {
		p.handleSplit(date)
	}
	return deltaCash, nil
}

// ApplyTrade applies one execution and returns the cash delta. OPEN is a cash
// outflow of the full notional plus costs; CLOSE is an inflow of the notional
// net of costs.
func (p *StockPosition) ApplyTrade(trade *core.Trade) (decimal.Decimal, error) {
	p.transactionCost = p.transactionCost.Add(trade.TransactionCost)
	switch trade.PositionEffect {
	case core.EffectOpen:
		p.applyOpen(trade)
		if inst := p.resolveInstrument(); inst != nil && inst.MarketTPlus >= 1 {
			p.nonClosable = p.nonClosable.Add(trade.Quantity)
		}
		return trade.Price.Mul(trade.Quantity).Neg().Sub(trade.TransactionCost), nil
	case core.EffectClose:
		p.applyClose(trade.Quantity)
		return trade.Price.Mul(trade.Quantity).Sub(trade.TransactionCost), nil
	default:
		return decimal.Zero, apperrors.NewEffectError(p.orderBookID, trade.PositionEffect)
	}
}

// Settlement rolls today into old and resolves delisting. When the instrument
// delists on the next trading day and a share transformation exists, the
// result carries a synthetic OPEN trade for the successor that the caller must
// re-apply to a fresh position.
func (p *StockPosition) Settlement(date time.Time) (SettlementResult, error) {
	p.rollSettlement()
	p.prevClose = p.lastPrice

	if p.Quantity().IsZero() {
		return SettlementResult{CashDelta: decimal.Zero}, nil
	}
	if p.direction != core.DirectionLong {
		return SettlementResult{}, apperrors.NewPositionError(p.orderBookID, apperrors.ErrShortStockPosition)
	}

	inst := p.resolveInstrument()
	if inst == nil {
		return SettlementResult{}, apperrors.NewPositionError(p.orderBookID, apperrors.ErrUnknownInstrument)
	}
	nextDate := p.env.Data.NextTradingDate(date)
	if !inst.DeListedAt(nextDate) {
		return SettlementResult{CashDelta: decimal.Zero}, nil
	}
	telemetry.GetGlobalMetrics().CountCorporateAction("delisting")

	if transformation, supported := p.env.Data.ShareTransformation(p.orderBookID); supported && transformation != nil {
		substitute := &core.Trade{
			OrderID:        uuid.NewString(),
			OrderBookID:    transformation.SuccessorID,
			Price:          p.avgPrice.Div(transformation.ConversionRatio),
			Quantity:       p.Quantity().Mul(transformation.ConversionRatio),
			Side:           core.SideBuy,
			PositionEffect: core.EffectOpen,
		}
		return SettlementResult{CashDelta: decimal.Zero, SubstituteTrade: substitute}, nil
	}

	if p.env.Policy.CashReturnByStockDelisted {
		deltaCash := p.MarketValue()
		p.todayQuantity = decimal.Zero
		p.oldQuantity = decimal.Zero
		return SettlementResult{CashDelta: deltaCash}, nil
	}

	// No successor and no cash return: the quantity stays unresolved and the
	// owning account decides what to do with it.
	p.logger.Debug("delisted with unresolved quantity", "quantity", p.Quantity())
	return SettlementResult{CashDelta: decimal.Zero}, nil
}

// CalcCloseTodayAmount is always zero: equities have no close-today specific
// accounting.
func (p *StockPosition) CalcCloseTodayAmount(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

func (p *StockPosition) GetState() *core.PositionState {
	state := p.base.GetState()
	if p.dividendReceivable != nil {
		receivable := *p.dividendReceivable
		state.DividendReceivable = &receivable
	}
	return state
}

func (p *StockPosition) SetState(state *core.PositionState) {
	p.base.SetState(state)
	p.dividendReceivable = nil
	if state.DividendReceivable != nil {
		receivable := *state.DividendReceivable
		p.dividendReceivable = &receivable
	}
}

func (p *StockPosition) handleDividendBookClosure(date time.Time) error {
	lastDate := p.env.Data.PreviousTradingDate(date)
	dividend := p.env.Data.DividendByBookDate(p.orderBookID, lastDate)
	if dividend == nil {
		return nil
	}
	if !dividend.RoundLot.IsPositive() {
		return apperrors.NewPositionError(p.orderBookID, apperrors.ErrInvalidDividend)
	}
	perShare := dividend.CashBeforeTax.Div(dividend.RoundLot)
	p.avgPrice = p.avgPrice.Sub(perShare)

	payableDate := dividend.PayableDate
	if payableDate.IsZero() {
		payableDate = dividend.ExDividendDate
	}
	p.dividendReceivable = &core.DividendReceivable{
		PayableDate: core.Day(payableDate),
		Amount:      p.Quantity().Mul(perShare),
	}
	telemetry.GetGlobalMetrics().CountCorporateAction("dividend")
	return nil
}

func (p *StockPosition) handleDividendPayable(date time.Time) (decimal.Decimal, error) {
	if p.dividendReceivable == nil {
		return decimal.Zero, nil
	}
	if !core.SameDay(p.dividendReceivable.PayableDate, date) {
		return decimal.Zero, nil
	}
	amount := p.dividendReceivable.Amount
	p.dividendReceivable = nil

	if !p.env.Policy.DividendReinvestment || p.lastPrice.IsZero() {
		return amount, nil
	}
	_, err := p.ApplyTrade(&core.Trade{
		OrderID:        uuid.NewString(),
		OrderBookID:    p.orderBookID,
		Price:          p.lastPrice,
		Quantity:       amount.Div(p.lastPrice),
		Side:           core.SideBuy,
		PositionEffect: core.EffectOpen,
	})
	return decimal.Zero, err
}

func (p *StockPosition) handleSplit(date time.Time) {
	ratio := p.env.Data.SplitByExDate(p.orderBookID, date)
	if ratio == nil {
		return
	}
	p.todayQuantity = p.todayQuantity.Mul(*ratio)
	p.oldQuantity = p.oldQuantity.Mul(*ratio)
	p.avgPrice = p.avgPrice.Div(*ratio)
	telemetry.GetGlobalMetrics().CountCorporateAction("split")
}
