// Package core defines the shared interfaces and value types for the
// position accounting engine.
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IDataSource resolves market reference data: the trading calendar, instrument
// static data, and corporate actions. Implementations are assumed synchronous
// and side-effect free from the engine's point of view.
type IDataSource interface {
	PreviousTradingDate(date time.Time) time.Time
	NextTradingDate(date time.Time) time.Time

	// Instrument returns static data for an order book id, or nil when the
	// id is unknown.
	Instrument(orderBookID string) *Instrument

	// DividendByBookDate returns the dividend whose book-closure date is the
	// given date, or nil when there is none.
	DividendByBookDate(orderBookID string, date time.Time) *Dividend

	// SplitByExDate returns the split ratio effective on the given date, or
	// nil when there is none.
	SplitByExDate(orderBookID string, date time.Time) *decimal.Decimal

	// ShareTransformation resolves the delisting successor for an instrument.
	// supported is false when the lookup is not implemented for the
	// instrument class; that is a missing capability, not an error.
	ShareTransformation(orderBookID string) (transformation *ShareTransformation, supported bool)
}

// IStateStore persists and restores full portfolio snapshots.
type IStateStore interface {
	SaveSnapshot(ctx context.Context, snapshot *PortfolioSnapshot) error
	LoadSnapshot(ctx context.Context) (*PortfolioSnapshot, error)
	Close() error
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
