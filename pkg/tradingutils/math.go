package tradingutils

import (
	"github.com/shopspring/decimal"
)

// WeightedAvgPrice folds a new fill into an existing volume-weighted average
// open price. Tolerates a negative existing quantity: when the incoming
// quantity fully covers it the cost basis of the old side no longer applies
// and the average resets.
func WeightedAvgPrice(quantity, avgPrice, fillQuantity, fillPrice decimal.Decimal) decimal.Decimal {
	if quantity.IsNegative() {
		if fillQuantity.LessThanOrEqual(quantity.Neg()) {
			return decimal.Zero
		}
		return fillPrice
	}
	total := quantity.Add(fillQuantity)
	if total.IsZero() {
		return decimal.Zero
	}
	return quantity.Mul(avgPrice).Add(fillQuantity.Mul(fillPrice)).Div(total)
}

// MaxDecimal returns the larger of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundQuantity rounds a quantity to the specified decimals
func RoundQuantity(qty decimal.Decimal, qtyDecimals int) decimal.Decimal {
	return qty.Round(int32(qtyDecimals))
}
