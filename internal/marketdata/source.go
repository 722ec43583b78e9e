// Package marketdata provides an in-memory reference data source: trading
// calendar, instrument static data, and corporate actions, loaded up front
// and served without I/O during replay.
package marketdata

import (
	"sort"
	"time"

	"backtest_accounts/internal/core"

	"github.com/shopspring/decimal"
)

// Source implements core.IDataSource over preloaded tables.
type Source struct {
	calendar        []time.Time
	instruments     map[string]*core.Instrument
	dividends       map[string][]*core.Dividend
	splits          map[string]map[string]decimal.Decimal
	transformations map[string]*core.ShareTransformation
}

func NewSource() *Source {
	return &Source{
		instruments:     make(map[string]*core.Instrument),
		dividends:       make(map[string][]*core.Dividend),
		splits:          make(map[string]map[string]decimal.Decimal),
		transformations: make(map[string]*core.ShareTransformation),
	}
}

// SetCalendar installs the trading calendar. Dates are normalized and
// sorted; duplicates are allowed and collapse.
func (s *Source) SetCalendar(dates []time.Time) {
	seen := make(map[string]bool, len(dates))
	s.calendar = s.calendar[:0]
	for _, d := range dates {
		day := core.Day(d)
		key := day.Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			s.calendar = append(s.calendar, day)
		}
	}
	sort.Slice(s.calendar, func(i, j int) bool { return s.calendar[i].Before(s.calendar[j]) })
}

// Calendar returns the installed trading dates in order.
func (s *Source) Calendar() []time.Time {
	return s.calendar
}

func (s *Source) AddInstrument(inst *core.Instrument) {
	s.instruments[inst.OrderBookID] = inst
}

func (s *Source) AddDividend(orderBookID string, dividend *core.Dividend) {
	s.dividends[orderBookID] = append(s.dividends[orderBookID], dividend)
}

func (s *Source) AddSplit(orderBookID string, exDate time.Time, ratio decimal.Decimal) {
	if s.splits[orderBookID] == nil {
		s.splits[orderBookID] = make(map[string]decimal.Decimal)
	}
	s.splits[orderBookID][core.Day(exDate).Format("2006-01-02")] = ratio
}

func (s *Source) AddShareTransformation(predecessor string, tf *core.ShareTransformation) {
	s.transformations[predecessor] = tf
}

// PreviousTradingDate returns the last calendar date strictly before the
// given date, or the date itself when the calendar has nothing earlier.
func (s *Source) PreviousTradingDate(date time.Time) time.Time {
	day := core.Day(date)
	i := sort.Search(len(s.calendar), func(i int) bool { return !s.calendar[i].Before(day) })
	if i == 0 {
		return day
	}
	return s.calendar[i-1]
}

// NextTradingDate returns the first calendar date strictly after the given
// date, or the date itself when the calendar has nothing later.
func (s *Source) NextTradingDate(date time.Time) time.Time {
	day := core.Day(date)
	i := sort.Search(len(s.calendar), func(i int) bool { return s.calendar[i].After(day) })
	if i == len(s.calendar) {
		return day
	}
	return s.calendar[i]
}

func (s *Source) Instrument(orderBookID string) *core.Instrument {
	return s.instruments[orderBookID]
}

func (s *Source) DividendByBookDate(orderBookID string, date time.Time) *core.Dividend {
	for _, dividend := range s.dividends[orderBookID] {
		if core.SameDay(dividend.BookClosureDate, date) {
			return dividend
		}
	}
	return nil
}

func (s *Source) SplitByExDate(orderBookID string, date time.Time) *decimal.Decimal {
	byDate, ok := s.splits[orderBookID]
	if !ok {
		return nil
	}
	ratio, ok := byDate[core.Day(date).Format("2006-01-02")]
	if !ok {
		return nil
	}
	return &ratio
}

func (s *Source) ShareTransformation(orderBookID string) (*core.ShareTransformation, bool) {
	tf, ok := s.transformations[orderBookID]
	if !ok {
		// Lookup is implemented; the instrument simply has no successor.
		return nil, true
	}
	return tf, true
}
