package marketdata

import (
	"testing"
	"time"

	"backtest_accounts/internal/core"

	"github.com/shopspring/decimal"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t.Fatalf("bad date %q: %v", raw, err)
	}
	return core.Day(parsed)
}

func calendarSource(t *testing.T) *Source {
	t.Helper()
	s := NewSource()
	s.SetCalendar([]time.Time{
		day(t, "2024-01-05"),
		day(t, "2024-01-02"),
		day(t, "2024-01-03"),
		day(t, "2024-01-03"), // duplicate collapses
		day(t, "2024-01-04"),
	})
	return s
}

func TestSource_TradingCalendarNavigation(t *testing.T) {
	s := calendarSource(t)

	if got := s.PreviousTradingDate(day(t, "2024-01-04")); !got.Equal(day(t, "2024-01-03")) {
		t.Errorf("previous of 01-04 = %s", got.Format("2006-01-02"))
	}
	if got := s.NextTradingDate(day(t, "2024-01-04")); !got.Equal(day(t, "2024-01-05")) {
		t.Errorf("next of 01-04 = %s", got.Format("2006-01-02"))
	}
	// Weekend gap: previous trading date of Saturday is Friday.
	if got := s.PreviousTradingDate(day(t, "2024-01-06")); !got.Equal(day(t, "2024-01-05")) {
		t.Errorf("previous of 01-06 = %s", got.Format("2006-01-02"))
	}
	// Out of range falls back to the date itself.
	if got := s.PreviousTradingDate(day(t, "2024-01-02")); !got.Equal(day(t, "2024-01-02")) {
		t.Errorf("previous at lower bound = %s", got.Format("2006-01-02"))
	}
	if got := s.NextTradingDate(day(t, "2024-01-05")); !got.Equal(day(t, "2024-01-05")) {
		t.Errorf("next at upper bound = %s", got.Format("2006-01-02"))
	}
	if n := len(s.Calendar()); n != 4 {
		t.Errorf("calendar length = %d, want 4 after dedup", n)
	}
}

func TestSource_DividendLookupByBookDate(t *testing.T) {
	s := calendarSource(t)
	s.AddDividend("000001.XSHE", &core.Dividend{
		CashBeforeTax:   decimal.NewFromFloat(2.8),
		RoundLot:        decimal.NewFromInt(10),
		BookClosureDate: day(t, "2024-01-03"),
		ExDividendDate:  day(t, "2024-01-04"),
	})

	if d := s.DividendByBookDate("000001.XSHE", day(t, "2024-01-03")); d == nil {
		t.Error("dividend not found on book closure date")
	}
	if d := s.DividendByBookDate("000001.XSHE", day(t, "2024-01-04")); d != nil {
		t.Error("dividend found on wrong date")
	}
	if d := s.DividendByBookDate("600000.XSHG", day(t, "2024-01-03")); d != nil {
		t.Error("dividend found for wrong instrument")
	}
}

func TestSource_SplitAndTransformationLookups(t *testing.T) {
	s := calendarSource(t)
	s.AddSplit("000001.XSHE", day(t, "2024-01-04"), decimal.NewFromInt(2))
	s.AddShareTransformation("000333.XSHE", &core.ShareTransformation{
		SuccessorID:     "000333S.XSHE",
		ConversionRatio: decimal.NewFromInt(2),
	})

	if ratio := s.SplitByExDate("000001.XSHE", day(t, "2024-01-04")); ratio == nil || !ratio.Equal(decimal.NewFromInt(2)) {
		t.Errorf("split ratio = %v", ratio)
	}
	if ratio := s.SplitByExDate("000001.XSHE", day(t, "2024-01-05")); ratio != nil {
		t.Error("split found on wrong date")
	}

	tf, supported := s.ShareTransformation("000333.XSHE")
	if !supported || tf == nil || tf.SuccessorID != "000333S.XSHE" {
		t.Errorf("transformation = %+v, supported = %v", tf, supported)
	}
	tf, supported = s.ShareTransformation("000001.XSHE")
	if !supported || tf != nil {
		t.Errorf("missing transformation should be (nil, true), got %+v, %v", tf, supported)
	}
}

func TestSource_InstrumentLookup(t *testing.T) {
	s := NewSource()
	s.AddInstrument(&core.Instrument{OrderBookID: "IF2403", Type: core.InstrumentFuture})

	if inst := s.Instrument("IF2403"); inst == nil || inst.Type != core.InstrumentFuture {
		t.Errorf("instrument = %+v", inst)
	}
	if inst := s.Instrument("unknown"); inst != nil {
		t.Errorf("unknown instrument = %+v", inst)
	}
}
