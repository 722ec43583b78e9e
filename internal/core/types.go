package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction identifies which side of the book a position sits on.
// Equity positions are always LONG; future positions keep one record per side.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Factor returns +1 for LONG and -1 for SHORT, used to make pnl formulas
// direction agnostic.
func (d Direction) Factor() decimal.Decimal {
	if d == DirectionShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Side is the taker side of an execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionEffect tags a trade with its intent against the position.
type PositionEffect string

const (
	EffectOpen       PositionEffect = "OPEN"
	EffectClose      PositionEffect = "CLOSE"
	EffectCloseToday PositionEffect = "CLOSE_TODAY"
	EffectExercise   PositionEffect = "EXERCISE"
)

// IsClosing reports whether the effect reduces an open position.
func (e PositionEffect) IsClosing() bool {
	return e == EffectClose || e == EffectCloseToday || e == EffectExercise
}

// InstrumentType discriminates the two accounting models.
type InstrumentType string

const (
	InstrumentEquity InstrumentType = "EQUITY"
	InstrumentFuture InstrumentType = "FUTURE"
)

// Trade is an immutable record of one execution produced by the matching
// component. Quantity is always positive; Side and PositionEffect carry the
// sign semantics.
type Trade struct {
	OrderID         string
	OrderBookID     string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Side            Side
	PositionEffect  PositionEffect
	TransactionCost decimal.Decimal
}

// Order is the narrow slice of an open order a position needs to compute its
// closable quantity. The full order book lives elsewhere.
type Order struct {
	OrderID        string
	PositionEffect PositionEffect
	Quantity       decimal.Decimal
}

// Instrument holds static reference data resolved from the data source.
type Instrument struct {
	OrderBookID        string
	Type               InstrumentType
	ContractMultiplier decimal.Decimal
	MarginRate         decimal.Decimal
	// MarketTPlus >= 1 means quantity opened today cannot be closed today.
	MarketTPlus int
	// DeListedDate is zero for instruments that never delist.
	DeListedDate time.Time
}

// DeListedAt reports whether the instrument is delisted as of the given date.
func (i *Instrument) DeListedAt(date time.Time) bool {
	if i.DeListedDate.IsZero() {
		return false
	}
	return !date.Before(i.DeListedDate)
}

// Dividend describes one cash dividend event keyed by book-closure date.
type Dividend struct {
	CashBeforeTax   decimal.Decimal
	RoundLot        decimal.Decimal
	BookClosureDate time.Time
	PayableDate     time.Time
	ExDividendDate  time.Time
}

// ShareTransformation describes a delisting resolution where holdings convert
// into a successor instrument.
type ShareTransformation struct {
	SuccessorID     string
	ConversionRatio decimal.Decimal
}

// PositionState is the serializable snapshot of a single position record.
type PositionState struct {
	OrderBookID        string              `json:"order_book_id"`
	Direction          Direction           `json:"direction"`
	OldQuantity        decimal.Decimal     `json:"old_quantity"`
	TodayQuantity      decimal.Decimal     `json:"today_quantity"`
	LogicalOldQuantity decimal.Decimal     `json:"logical_old_quantity"`
	AvgPrice           decimal.Decimal     `json:"avg_price"`
	TradeCost          decimal.Decimal     `json:"trade_cost"`
	TransactionCost    decimal.Decimal     `json:"transaction_cost"`
	NonClosable        decimal.Decimal     `json:"non_closable"`
	PrevClose          decimal.Decimal     `json:"prev_close"`
	LastPrice          decimal.Decimal     `json:"last_price"`
	DividendReceivable *DividendReceivable `json:"dividend_receivable,omitempty"`
}

// DividendReceivable is a pending dividend awaiting its payable date.
type DividendReceivable struct {
	PayableDate time.Time       `json:"payable_date"`
	Amount      decimal.Decimal `json:"amount"`
}

// PortfolioSnapshot is the persistable state of one account: cash plus every
// position record, keyed by order book id.
type PortfolioSnapshot struct {
	TradingDate time.Time                   `json:"trading_date"`
	Cash        decimal.Decimal             `json:"cash"`
	Positions   map[string][]*PositionState `json:"positions"`
}

// Day truncates a timestamp to its calendar date in UTC. All trading dates in
// the engine are normalized through this so equality checks are exact.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay compares two timestamps by calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
