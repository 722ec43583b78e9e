package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestWeightedAvgPrice(t *testing.T) {
	tests := []struct {
		name         string
		quantity     float64
		avgPrice     float64
		fillQuantity float64
		fillPrice    float64
		want         float64
	}{
		{"first fill", 0, 0, 100, 10, 10},
		{"equal weights", 100, 10, 100, 12, 11},
		{"uneven weights", 300, 10, 100, 14, 11},
		{"negative fully covered resets to zero", -100, 10, 100, 12, 0},
		{"negative overshoot takes fill price", -100, 10, 150, 12, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAvgPrice(d(tt.quantity), d(tt.avgPrice), d(tt.fillQuantity), d(tt.fillPrice))
			if !got.Equal(d(tt.want)) {
				t.Errorf("WeightedAvgPrice = %s, want %v", got, tt.want)
			}
		})
	}
}

func TestMinMaxDecimal(t *testing.T) {
	if !MaxDecimal(d(1), d(2)).Equal(d(2)) {
		t.Error("MaxDecimal(1, 2) != 2")
	}
	if !MaxDecimal(d(3), d(2)).Equal(d(3)) {
		t.Error("MaxDecimal(3, 2) != 3")
	}
	if !MinDecimal(d(1), d(2)).Equal(d(1)) {
		t.Error("MinDecimal(1, 2) != 1")
	}
	if !MinDecimal(d(-1), d(-2)).Equal(d(-2)) {
		t.Error("MinDecimal(-1, -2) != -2")
	}
}

func TestRounding(t *testing.T) {
	if !RoundPrice(d(10.456), 2).Equal(d(10.46)) {
		t.Error("RoundPrice(10.456, 2) != 10.46")
	}
	if !RoundQuantity(d(1.2345), 3).Equal(d(1.235)) {
		t.Errorf("RoundQuantity(1.2345, 3) = %s", RoundQuantity(d(1.2345), 3))
	}
}
