package backtest

import (
	"fmt"
	"os"
	"time"

	"backtest_accounts/internal/core"
	"backtest_accounts/internal/marketdata"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Scenario is the YAML input of a replay: reference data plus the daily bars.
type Scenario struct {
	Calendar    []string             `yaml:"calendar"`
	Instruments []instrumentYAML     `yaml:"instruments"`
	Dividends   []dividendYAML       `yaml:"dividends"`
	Splits      []splitYAML          `yaml:"splits"`
	Conversions []transformationYAML `yaml:"conversions"`
	Days        []dayYAML            `yaml:"days"`
}

type instrumentYAML struct {
	OrderBookID        string  `yaml:"order_book_id"`
	Type               string  `yaml:"type"`
	ContractMultiplier float64 `yaml:"contract_multiplier"`
	MarginRate         float64 `yaml:"margin_rate"`
	MarketTPlus        int     `yaml:"market_tplus"`
	DeListedDate       string  `yaml:"de_listed_date"`
}

type dividendYAML struct {
	OrderBookID     string  `yaml:"order_book_id"`
	CashBeforeTax   float64 `yaml:"cash_before_tax"`
	RoundLot        float64 `yaml:"round_lot"`
	BookClosureDate string  `yaml:"book_closure_date"`
	ExDividendDate  string  `yaml:"ex_dividend_date"`
	PayableDate     string  `yaml:"payable_date"`
}

type splitYAML struct {
	OrderBookID string  `yaml:"order_book_id"`
	ExDate      string  `yaml:"ex_date"`
	Ratio       float64 `yaml:"ratio"`
}

type transformationYAML struct {
	PredecessorID   string  `yaml:"predecessor_id"`
	SuccessorID     string  `yaml:"successor_id"`
	ConversionRatio float64 `yaml:"conversion_ratio"`
}

type dayYAML struct {
	Date   string             `yaml:"date"`
	Prices map[string]float64 `yaml:"prices"`
	Trades []tradeYAML        `yaml:"trades"`
}

type tradeYAML struct {
	OrderID         string  `yaml:"order_id"`
	OrderBookID     string  `yaml:"order_book_id"`
	Price           float64 `yaml:"price"`
	Quantity        float64 `yaml:"quantity"`
	Side            string  `yaml:"side"`
	PositionEffect  string  `yaml:"position_effect"`
	TransactionCost float64 `yaml:"transaction_cost"`
}

// LoadScenario reads a scenario file and materializes the data source and
// the bar sequence to replay.
func LoadScenario(path string) (*marketdata.Source, []DailyBar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(raw, &scenario); err != nil {
		return nil, nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	return scenario.Materialize()
}

// Materialize converts the YAML representation into engine types.
func (s *Scenario) Materialize() (*marketdata.Source, []DailyBar, error) {
	source := marketdata.NewSource()

	calendar := make([]time.Time, 0, len(s.Calendar))
	for _, raw := range s.Calendar {
		date, err := parseDate(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("calendar: %w", err)
		}
		calendar = append(calendar, date)
	}
	source.SetCalendar(calendar)

	for _, inst := range s.Instruments {
		instType := core.InstrumentEquity
		if inst.Type == "future" {
			instType = core.InstrumentFuture
		}
		parsed := &core.Instrument{
			OrderBookID:        inst.OrderBookID,
			Type:               instType,
			ContractMultiplier: decimal.NewFromFloat(inst.ContractMultiplier),
			MarginRate:         decimal.NewFromFloat(inst.MarginRate),
			MarketTPlus:        inst.MarketTPlus,
		}
		if inst.DeListedDate != "" {
			date, err := parseDate(inst.DeListedDate)
			if err != nil {
				return nil, nil, fmt.Errorf("instrument %s: %w", inst.OrderBookID, err)
			}
			parsed.DeListedDate = date
		}
		source.AddInstrument(parsed)
	}

	for _, div := range s.Dividends {
		bookClosure, err := parseDate(div.BookClosureDate)
		if err != nil {
			return nil, nil, fmt.Errorf("dividend %s: %w", div.OrderBookID, err)
		}
		exDate, err := parseDate(div.ExDividendDate)
		if err != nil {
			return nil, nil, fmt.Errorf("dividend %s: %w", div.OrderBookID, err)
		}
		parsed := &core.Dividend{
			CashBeforeTax:   decimal.NewFromFloat(div.CashBeforeTax),
			RoundLot:        decimal.NewFromFloat(div.RoundLot),
			BookClosureDate: bookClosure,
			ExDividendDate:  exDate,
		}
		if div.PayableDate != "" {
			payable, err := parseDate(div.PayableDate)
			if err != nil {
				return nil, nil, fmt.Errorf("dividend %s: %w", div.OrderBookID, err)
			}
			parsed.PayableDate = payable
		}
		source.AddDividend(div.OrderBookID, parsed)
	}

	for _, split := range s.Splits {
		exDate, err := parseDate(split.ExDate)
		if err != nil {
			return nil, nil, fmt.Errorf("split %s: %w", split.OrderBookID, err)
		}
		source.AddSplit(split.OrderBookID, exDate, decimal.NewFromFloat(split.Ratio))
	}

	for _, conversion := range s.Conversions {
		source.AddShareTransformation(conversion.PredecessorID, &core.ShareTransformation{
			SuccessorID:     conversion.SuccessorID,
			ConversionRatio: decimal.NewFromFloat(conversion.ConversionRatio),
		})
	}

	bars := make([]DailyBar, 0, len(s.Days))
	for _, day := range s.Days {
		date, err := parseDate(day.Date)
		if err != nil {
			return nil, nil, fmt.Errorf("day: %w", err)
		}
		bar := DailyBar{Date: date, Prices: make(map[string]decimal.Decimal, len(day.Prices))}
		for id, price := range day.Prices {
			bar.Prices[id] = decimal.NewFromFloat(price)
		}
		for _, trade := range day.Trades {
			parsed, err := trade.materialize()
			if err != nil {
				return nil, nil, fmt.Errorf("day %s: %w", day.Date, err)
			}
			bar.Trades = append(bar.Trades, parsed)
		}
		bars = append(bars, bar)
	}

	return source, bars, nil
}

func (t tradeYAML) materialize() (*core.Trade, error) {
	var side core.Side
	switch t.Side {
	case "buy":
		side = core.SideBuy
	case "sell":
		side = core.SideSell
	default:
		return nil, fmt.Errorf("trade %s: unknown side %q", t.OrderID, t.Side)
	}

	var effect core.PositionEffect
	switch t.PositionEffect {
	case "open":
		effect = core.EffectOpen
	case "close":
		effect = core.EffectClose
	case "close_today":
		effect = core.EffectCloseToday
	default:
		return nil, fmt.Errorf("trade %s: unknown position effect %q", t.OrderID, t.PositionEffect)
	}

	return &core.Trade{
		OrderID:         t.OrderID,
		OrderBookID:     t.OrderBookID,
		Price:           decimal.NewFromFloat(t.Price),
		Quantity:        decimal.NewFromFloat(t.Quantity),
		Side:            side,
		PositionEffect:  effect,
		TransactionCost: decimal.NewFromFloat(t.TransactionCost),
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return core.Day(date), nil
}
