package money

import "github.com/shopspring/decimal"

// Round2 applies the storefront rounding policy: two decimal places, applied
// after every arithmetic step that produces a persisted or displayed amount.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Line multiplies a unit amount by a quantity and rounds the result.
func Line(unit decimal.Decimal, qty int) decimal.Decimal {
	return Round2(unit.Mul(decimal.NewFromInt(int64(qty))))
}

// NetFromGross derives the net amount from a tax-inclusive gross using
// net = gross / (1 + rate).
func NetFromGross(gross, rate decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(rate)
	if divisor.IsZero() {
		return gross
	}
	return Round2(gross.DivRound(divisor, 4))
}

// TaxFromGross derives the tax portion of a tax-inclusive gross amount.
func TaxFromGross(gross, rate decimal.Decimal) decimal.Decimal {
	return Round2(gross.Sub(NetFromGross(gross, rate)))
}

// TaxOnBase computes tax added on top of a tax-exclusive base amount.
func TaxOnBase(base, rate decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(rate))
}

// Zero is the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}
