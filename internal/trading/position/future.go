package position

import (
	"time"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	apperrors "backtest_accounts/pkg/errors"
	"backtest_accounts/pkg/telemetry"
	"backtest_accounts/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// FuturePosition is the margin-instrument accounting record. LONG and SHORT
// are tracked as two independent records with non-negative quantity each; net
// exposure is never represented as one signed quantity.
type FuturePosition struct {
	base

	multiplierResolved bool
	contractMultiplier decimal.Decimal

	marginRateResolved   bool
	marginRate           decimal.Decimal
	marginRateMultiplier decimal.Decimal
}

// NewFuturePosition creates an empty future record.
func NewFuturePosition(e *env.Environment, orderBookID string, direction core.Direction) *FuturePosition {
	return &FuturePosition{base: newBase(e, orderBookID, direction)}
}

// ContractMultiplier is static reference data, resolved once per record.
func (p *FuturePosition) ContractMultiplier() decimal.Decimal {
	if !p.multiplierResolved {
		p.contractMultiplier = decimal.NewFromInt(1)
		if inst := p.resolveInstrument(); inst != nil {
			p.contractMultiplier = inst.ContractMultiplier
		}
		p.multiplierResolved = true
	}
	return p.contractMultiplier
}

// MarginRate is the instrument margin rate scaled by the global margin
// multiplier. The product is cached together with the multiplier it was
// computed under, so a mid-run SetMarginMultiplier takes effect on the next
// read without the environment holding references to position records.
func (p *FuturePosition) MarginRate() decimal.Decimal {
	multiplier := p.env.MarginMultiplier()
	if !p.marginRateResolved || !multiplier.Equal(p.marginRateMultiplier) {
		p.marginRate = decimal.Zero
		if inst := p.resolveInstrument(); inst != nil {
			p.marginRate = inst.MarginRate.Mul(multiplier)
		}
		p.marginRateMultiplier = multiplier
		p.marginRateResolved = true
	}
	return p.marginRate
}

// MarketValue is last price times quantity times the contract multiplier.
func (p *FuturePosition) MarketValue() decimal.Decimal {
	return p.lastPrice.Mul(p.Quantity()).Mul(p.ContractMultiplier())
}

// Margin is the market value scaled by the margin rate.
func (p *FuturePosition) Margin() decimal.Decimal {
	return p.MarketValue().Mul(p.MarginRate())
}

// Equity is the unrealized profit against the average open price.
func (p *FuturePosition) Equity() decimal.Decimal {
	return p.Quantity().
		Mul(p.lastPrice.Sub(p.avgPrice)).
		Mul(p.ContractMultiplier()).
		Mul(p.direction.Factor())
}

// PnL equals Equity for a daily-settled margin instrument.
func (p *FuturePosition) PnL() decimal.Decimal {
	return p.Equity()
}

// TradingPnl isolates the profit from trades executed since the last
// settlement, scaled by multiplier and direction.
func (p *FuturePosition) TradingPnl() decimal.Decimal {
	tradeQuantity := p.todayQuantity.Add(p.oldQuantity.Sub(p.logicalOldQuantity))
	return p.ContractMultiplier().
		Mul(tradeQuantity.Mul(p.lastPrice).Sub(p.tradeCost)).
		Mul(p.direction.Factor())
}

// PositionPnl is the profit on quantity held as of the prior close.
func (p *FuturePosition) PositionPnl() decimal.Decimal {
	if p.logicalOldQuantity.IsZero() {
		return decimal.Zero
	}
	return p.logicalOldQuantity.
		Mul(p.ContractMultiplier()).
		Mul(p.lastPrice.Sub(p.prevClose)).
		Mul(p.direction.Factor())
}

// CalcCloseTodayAmount is the portion of a closing trade that must come out of
// today's opens rather than yesterday's holding.
func (p *FuturePosition) CalcCloseTodayAmount(quantity decimal.Decimal) decimal.Decimal {
	return tradingutils.MaxDecimal(quantity.Sub(p.oldQuantity), decimal.Zero)
}

// BeforeTrading is a no-op: no corporate actions apply to futures here.
func (p *FuturePosition) BeforeTrading(time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// ApplyTrade applies one execution. Opens move no notional cash (margin
// instruments settle pnl, not notional); closes realize pnl on the closed
// quantity net of fees.
func (p *FuturePosition) ApplyTrade(trade *core.Trade) (decimal.Decimal, error) {
	p.transactionCost = p.transactionCost.Add(trade.TransactionCost)
	switch trade.PositionEffect {
	case core.EffectOpen:
		p.applyOpen(trade)
		return trade.TransactionCost.Neg(), nil
	case core.EffectCloseToday:
		p.todayQuantity = p.todayQuantity.Sub(trade.Quantity)
	case core.EffectClose:
		p.applyClose(trade.Quantity)
	default:
		return decimal.Zero, apperrors.NewEffectError(p.orderBookID, trade.PositionEffect)
	}

	p.tradeCost = p.tradeCost.Sub(trade.Price.Mul(trade.Quantity))
	realized := trade.Price.Sub(p.avgPrice).
		Mul(trade.Quantity).
		Mul(p.ContractMultiplier()).
		Mul(p.direction.Factor())
	return trade.TransactionCost.Neg().Add(realized), nil
}

// Settlement marks the position to market: the day's equity is returned as
// cash and the cost basis resets to today's close. An instrument delisting on
// the next trading day is force-closed with a user-visible warning.
func (p *FuturePosition) Settlement(date time.Time) (SettlementResult, error) {
	p.rollSettlement()

	if p.Quantity().IsZero() {
		return SettlementResult{CashDelta: decimal.Zero}, nil
	}

	deltaCash := p.Equity()
	inst := p.resolveInstrument()
	if inst == nil {
		return SettlementResult{}, apperrors.NewPositionError(p.orderBookID, apperrors.ErrUnknownInstrument)
	}
	nextDate := p.env.Data.NextTradingDate(date)
	if inst.DeListedAt(nextDate) {
		p.logger.Warn("instrument is expired, close all positions by system",
			"order_book_id", p.orderBookID,
			"direction", p.direction,
			"quantity", p.Quantity())
		p.todayQuantity = decimal.Zero
		p.oldQuantity = decimal.Zero
		telemetry.GetGlobalMetrics().CountCorporateAction("delisting")
	}
	p.avgPrice = p.lastPrice
	p.prevClose = p.lastPrice
	return SettlementResult{CashDelta: deltaCash}, nil
}
