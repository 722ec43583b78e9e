package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricTradesAppliedTotal  = "backtest_accounts_trades_applied_total"
	MetricSettlementsTotal    = "backtest_accounts_settlements_total"
	MetricCorporateActions    = "backtest_accounts_corporate_actions_total"
	MetricCashBalance         = "backtest_accounts_cash_balance"
	MetricPositionMarketValue = "backtest_accounts_position_market_value"
	MetricPositionMargin      = "backtest_accounts_position_margin"
	MetricPositionDailyPnl    = "backtest_accounts_position_daily_pnl"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	TradesAppliedTotal  metric.Int64Counter
	SettlementsTotal    metric.Int64Counter
	CorporateActions    metric.Int64Counter
	CashBalance         metric.Float64ObservableGauge
	PositionMarketValue metric.Float64ObservableGauge
	PositionMargin      metric.Float64ObservableGauge
	PositionDailyPnl    metric.Float64ObservableGauge

	// State for observable gauges
	mu             sync.RWMutex
	cashBalance    float64
	marketValueMap map[string]float64
	marginMap      map[string]float64
	dailyPnlMap    map[string]float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			marketValueMap: make(map[string]float64),
			marginMap:      make(map[string]float64),
			dailyPnlMap:    make(map[string]float64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.TradesAppliedTotal, err = meter.Int64Counter(MetricTradesAppliedTotal, metric.WithDescription("Total trades applied to positions"))
	if err != nil {
		return err
	}

	m.SettlementsTotal, err = meter.Int64Counter(MetricSettlementsTotal, metric.WithDescription("Total position settlements performed"))
	if err != nil {
		return err
	}

	m.CorporateActions, err = meter.Int64Counter(MetricCorporateActions, metric.WithDescription("Total corporate actions applied (dividends, splits, delistings)"))
	if err != nil {
		return err
	}

	// Observables
	m.CashBalance, err = meter.Float64ObservableGauge(MetricCashBalance, metric.WithDescription("Current account cash balance"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.cashBalance)
			return nil
		}))
	if err != nil {
		return err
	}

	m.PositionMarketValue, err = meter.Float64ObservableGauge(MetricPositionMarketValue, metric.WithDescription("Current market value per instrument"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for id, val := range m.marketValueMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("order_book_id", id)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.PositionMargin, err = meter.Float64ObservableGauge(MetricPositionMargin, metric.WithDescription("Current margin requirement per instrument"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for id, val := range m.marginMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("order_book_id", id)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.PositionDailyPnl, err = meter.Float64ObservableGauge(MetricPositionDailyPnl, metric.WithDescription("Daily pnl per instrument"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for id, val := range m.dailyPnlMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("order_book_id", id)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// CountCorporateAction increments the corporate-action counter with the action
// kind (dividend, split, delisting) as an attribute. Safe to call before
// InitMetrics.
func (m *MetricsHolder) CountCorporateAction(action string) {
	if m.CorporateActions == nil {
		return
	}
	m.CorporateActions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("action", action)))
}

// SetCashBalance updates the observed cash balance
func (m *MetricsHolder) SetCashBalance(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cashBalance = value
}

// SetPositionValues updates the observed per-instrument valuation gauges
func (m *MetricsHolder) SetPositionValues(orderBookID string, marketValue, margin, dailyPnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketValueMap[orderBookID] = marketValue
	m.marginMap[orderBookID] = margin
	m.dailyPnlMap[orderBookID] = dailyPnl
}

// RemovePosition drops the gauges of a delisted or emptied instrument
func (m *MetricsHolder) RemovePosition(orderBookID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marketValueMap, orderBookID)
	delete(m.marginMap, orderBookID)
	delete(m.dailyPnlMap, orderBookID)
}
