package portfolio

import (
	"context"
	"sort"
	"time"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	"backtest_accounts/internal/trading/position"
	"backtest_accounts/pkg/concurrency"
	"backtest_accounts/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// Account owns the cash balance and one position record per instrument and
// direction. It drives the daily lifecycle in order: BeforeTrading, zero or
// more ApplyTrade calls, then Settlement, applying every cash delta the
// positions return. All mutating calls must come from a single goroutine.
type Account struct {
	env    *env.Environment
	logger core.ILogger

	cash      decimal.Decimal
	positions map[string]map[core.Direction]position.Position
	proxies   map[string]PositionProxy

	pool *concurrency.WorkerPool
}

// NewAccount creates an account with a starting cash balance.
func NewAccount(e *env.Environment, startCash decimal.Decimal, pool *concurrency.WorkerPool) *Account {
	a := &Account{
		env:       e,
		logger:    e.Logger.WithField("component", "account"),
		cash:      startCash,
		positions: make(map[string]map[core.Direction]position.Position),
		proxies:   make(map[string]PositionProxy),
	}
	a.pool = pool
	// ValuePercent reads come back through the environment.
	e.TotalValue = func(accountType env.AccountType) decimal.Decimal {
		if accountType != env.AccountTypeStock {
			return decimal.Zero
		}
		return a.StockAccountValue()
	}
	return a
}

// Cash is the current cash balance.
func (a *Account) Cash() decimal.Decimal {
	return a.cash
}

// BeforeTrading applies pre-market corporate actions across every position
// and books the resulting cash deltas.
func (a *Account) BeforeTrading(date time.Time) error {
	for _, orderBookID := range a.sortedIDs() {
		for _, dir := range []core.Direction{core.DirectionLong, core.DirectionShort} {
			pos, ok := a.positions[orderBookID][dir]
			if !ok {
				continue
			}
			deltaCash, err := pos.BeforeTrading(date)
			if err != nil {
				return err
			}
			a.cash = a.cash.Add(deltaCash)
		}
	}
	a.publishCash()
	return nil
}

// ApplyTrade routes one execution to the right per-direction record and books
// the returned cash delta.
func (a *Account) ApplyTrade(trade *core.Trade) error {
	pos := a.positionFor(trade.OrderBookID, tradeDirection(trade))
	deltaCash, err := pos.ApplyTrade(trade)
	if err != nil {
		return err
	}
	a.cash = a.cash.Add(deltaCash)

	if m := telemetry.GetGlobalMetrics(); m.TradesAppliedTotal != nil {
		m.TradesAppliedTotal.Add(context.Background(), 1)
	}
	a.publishCash()
	return nil
}

// Settlement settles every position, books the cash deltas, replaces
// instruments that converted into a successor, and prunes emptied records.
func (a *Account) Settlement(date time.Time) error {
	var substitutes []*core.Trade
	replaced := make(map[string]bool)

	for _, orderBookID := range a.sortedIDs() {
		for _, dir := range []core.Direction{core.DirectionLong, core.DirectionShort} {
			pos, ok := a.positions[orderBookID][dir]
			if !ok {
				continue
			}
			result, err := pos.Settlement(date)
			if err != nil {
				return err
			}
			a.cash = a.cash.Add(result.CashDelta)
			if result.HasSubstitution() {
				substitutes = append(substitutes, result.SubstituteTrade)
				replaced[orderBookID] = true
			}
			if m := telemetry.GetGlobalMetrics(); m.SettlementsTotal != nil {
				m.SettlementsTotal.Add(context.Background(), 1)
			}
		}
	}

	for id := range replaced {
		delete(a.positions, id)
		delete(a.proxies, id)
		telemetry.GetGlobalMetrics().RemovePosition(id)
	}
	// The conversion is an in-kind exchange: the successor position opens at
	// the carried cost basis without moving cash.
	for _, substitute := range substitutes {
		pos := a.positionFor(substitute.OrderBookID, tradeDirection(substitute))
		if _, err := pos.ApplyTrade(substitute); err != nil {
			return err
		}
		a.logger.Info("position replaced by share transformation",
			"successor", substitute.OrderBookID,
			"quantity", substitute.Quantity)
	}

	a.prune()
	a.publishValuation()
	return nil
}

// UpdateLastPrice feeds the current mark price into every record of an
// instrument.
func (a *Account) UpdateLastPrice(orderBookID string, price decimal.Decimal) {
	for _, pos := range a.positions[orderBookID] {
		pos.UpdateLastPrice(price)
	}
}

// SetOpenOrders hands the open-order collection of an instrument and
// direction to the record so it can compute its closable quantity.
func (a *Account) SetOpenOrders(orderBookID string, dir core.Direction, orders []*core.Order) {
	if pos, ok := a.positions[orderBookID][dir]; ok {
		pos.SetOpenOrders(orders)
	}
}

// Position returns the record for one instrument and direction, nil when it
// does not exist.
func (a *Account) Position(orderBookID string, dir core.Direction) position.Position {
	pos, ok := a.positions[orderBookID][dir]
	if !ok {
		return nil
	}
	return pos
}

// Proxy returns the lazily created reporting facade for one instrument, nil
// when the instrument has never been traded.
func (a *Account) Proxy(orderBookID string) PositionProxy {
	if proxy, ok := a.proxies[orderBookID]; ok {
		return proxy
	}
	byDir, ok := a.positions[orderBookID]
	if !ok {
		return nil
	}

	var proxy PositionProxy
	if stock, ok := byDir[core.DirectionLong].(*position.StockPosition); ok {
		proxy = NewStockPositionProxy(a.env, stock)
	} else {
		long, _ := a.positionFor(orderBookID, core.DirectionLong).(*position.FuturePosition)
		short, _ := a.positionFor(orderBookID, core.DirectionShort).(*position.FuturePosition)
		proxy = NewFuturePositionProxy(a.env, long, short)
	}
	a.proxies[orderBookID] = proxy
	return proxy
}

// Positions returns the reporting facade for every held instrument.
func (a *Account) Positions() map[string]PositionProxy {
	result := make(map[string]PositionProxy, len(a.positions))
	for id := range a.positions {
		result[id] = a.Proxy(id)
	}
	return result
}

// StockAccountValue is cash plus the market value of the equity holdings,
// the denominator for ValuePercent.
func (a *Account) StockAccountValue() decimal.Decimal {
	total := a.cash
	for _, byDir := range a.positions {
		if stock, ok := byDir[core.DirectionLong].(*position.StockPosition); ok {
			total = total.Add(stock.MarketValue())
		}
	}
	return total
}

// TotalValue is cash plus equity market value plus unsettled future pnl.
func (a *Account) TotalValue() decimal.Decimal {
	total := a.cash
	for _, byDir := range a.positions {
		for _, pos := range byDir {
			switch p := pos.(type) {
			case *position.StockPosition:
				total = total.Add(p.MarketValue())
			case *position.FuturePosition:
				total = total.Add(p.Equity())
			}
		}
	}
	return total
}

// MarketValue is the notional market value across all positions.
func (a *Account) MarketValue() decimal.Decimal {
	total := decimal.Zero
	for _, byDir := range a.positions {
		for _, pos := range byDir {
			total = total.Add(pos.MarketValue())
		}
	}
	return total
}

// Margin is the total margin requirement across all positions.
func (a *Account) Margin() decimal.Decimal {
	total := decimal.Zero
	for _, byDir := range a.positions {
		for _, pos := range byDir {
			total = total.Add(pos.Margin())
		}
	}
	return total
}

// DailyPnl is the day's total profit across all positions.
func (a *Account) DailyPnl() decimal.Decimal {
	total := decimal.Zero
	for _, byDir := range a.positions {
		for _, pos := range byDir {
			total = total.Add(pos.TradingPnl()).Add(pos.PositionPnl())
		}
	}
	return total
}

// ValuationRow is one instrument's line in a valuation report.
type ValuationRow struct {
	OrderBookID string
	Type        string
	Quantity    decimal.Decimal
	MarketValue decimal.Decimal
	Margin      decimal.Decimal
	DailyPnl    decimal.Decimal
}

// ValuationReport derives one row per held instrument. Rows are computed on
// the worker pool when one is configured; this is read-only and safe as long
// as the caller is not concurrently mutating the account.
func (a *Account) ValuationReport() []ValuationRow {
	ids := a.sortedIDs()
	rows := make([]ValuationRow, len(ids))

	fill := func(i int) {
		proxy := a.Proxy(ids[i])
		rows[i] = ValuationRow{
			OrderBookID: proxy.OrderBookID(),
			Type:        proxy.Type(),
			Quantity:    proxy.Quantity(),
			MarketValue: proxy.MarketValue(),
			Margin:      proxy.Margin(),
			DailyPnl:    proxy.DailyPnl(),
		}
	}

	// Proxies must exist before fanning out: lazy creation mutates the map.
	for _, id := range ids {
		a.Proxy(id)
	}

	if a.pool == nil {
		for i := range ids {
			fill(i)
		}
		return rows
	}

	done := make(chan int, len(ids))
	for i := range ids {
		i := i
		if err := a.pool.Submit(func() {
			fill(i)
			done <- i
		}); err != nil {
			fill(i)
			done <- i
		}
	}
	for range ids {
		<-done
	}
	return rows
}

// Snapshot exports the full account state for persistence.
func (a *Account) Snapshot(date time.Time) *core.PortfolioSnapshot {
	snapshot := &core.PortfolioSnapshot{
		TradingDate: core.Day(date),
		Cash:        a.cash,
		Positions:   make(map[string][]*core.PositionState),
	}
	for id, byDir := range a.positions {
		for _, dir := range []core.Direction{core.DirectionLong, core.DirectionShort} {
			if pos, ok := byDir[dir]; ok {
				snapshot.Positions[id] = append(snapshot.Positions[id], pos.GetState())
			}
		}
	}
	return snapshot
}

// Restore replaces the account state with a persisted snapshot.
func (a *Account) Restore(snapshot *core.PortfolioSnapshot) {
	a.cash = snapshot.Cash
	a.positions = make(map[string]map[core.Direction]position.Position)
	a.proxies = make(map[string]PositionProxy)
	for id, states := range snapshot.Positions {
		for _, state := range states {
			pos := position.NewFromState(a.env, state)
			if a.positions[id] == nil {
				a.positions[id] = make(map[core.Direction]position.Position)
			}
			a.positions[id][state.Direction] = pos
		}
	}
	a.publishCash()
}

func (a *Account) positionFor(orderBookID string, dir core.Direction) position.Position {
	byDir, ok := a.positions[orderBookID]
	if !ok {
		byDir = make(map[core.Direction]position.Position)
		a.positions[orderBookID] = byDir
	}
	pos, ok := byDir[dir]
	if !ok {
		pos = a.newPosition(orderBookID, dir)
		byDir[dir] = pos
		delete(a.proxies, orderBookID)
	}
	return pos
}

func (a *Account) newPosition(orderBookID string, dir core.Direction) position.Position {
	inst := a.env.Data.Instrument(orderBookID)
	if inst != nil && inst.Type == core.InstrumentFuture {
		return position.NewFuturePosition(a.env, orderBookID, dir)
	}
	return position.NewStockPosition(a.env, orderBookID, dir)
}

// prune drops records that settled to zero quantity with nothing pending.
func (a *Account) prune() {
	for id, byDir := range a.positions {
		empty := true
		for _, pos := range byDir {
			if !pos.Quantity().IsZero() {
				empty = false
				break
			}
			if stock, ok := pos.(*position.StockPosition); ok && !stock.DividendReceivable().IsZero() {
				empty = false
				break
			}
		}
		if empty {
			delete(a.positions, id)
			delete(a.proxies, id)
			telemetry.GetGlobalMetrics().RemovePosition(id)
		}
	}
}

func (a *Account) sortedIDs() []string {
	ids := make([]string, 0, len(a.positions))
	for id := range a.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Account) publishCash() {
	cash, _ := a.cash.Float64()
	telemetry.GetGlobalMetrics().SetCashBalance(cash)
}

func (a *Account) publishValuation() {
	for _, id := range a.sortedIDs() {
		proxy := a.Proxy(id)
		marketValue, _ := proxy.MarketValue().Float64()
		margin, _ := proxy.Margin().Float64()
		dailyPnl, _ := proxy.DailyPnl().Float64()
		telemetry.GetGlobalMetrics().SetPositionValues(id, marketValue, margin, dailyPnl)
	}
}

// tradeDirection maps side and effect onto the record the trade mutates:
// opens go with the side, closes go against it.
func tradeDirection(trade *core.Trade) core.Direction {
	if trade.PositionEffect == core.EffectOpen {
		if trade.Side == core.SideBuy {
			return core.DirectionLong
		}
		return core.DirectionShort
	}
	if trade.Side == core.SideSell {
		return core.DirectionLong
	}
	return core.DirectionShort
}
