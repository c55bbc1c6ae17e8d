package money

import (
	"github.com/shopspring/decimal"
)

// Currency is the only currency the platform handles.
const Currency = "EUR"

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round snaps an amount to two decimal places, half away from zero.
// Intermediate computations stay at full precision; only final
// per-promotion discounts and order totals pass through here.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Percent returns base × pct / 100 at full precision.
func Percent(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(decimal.NewFromInt(100))
}

// ClampNonNegative floors an amount at zero.
func ClampNonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// FromEuros builds an amount from a float input at the API boundary.
func FromEuros(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}
