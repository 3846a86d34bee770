package domain

import "github.com/shopspring/decimal"

// Monetary values travel through the API as decimal strings ("123.45")
// and live in the engine as int64 minor units. Interest rates use the
// same scheme with basis points ("5.25" -> 525).

// ParseAmount converts a decimal string to minor units. At most two
// fraction digits are accepted; finer precision is rejected rather than
// rounded, and so are values whose minor units overflow int64.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() || !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatAmount renders minor units as a decimal string with two
// fraction digits.
func FormatAmount(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}

// ParseRate converts a percentage string to basis points.
func ParseRate(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidRate
	}
	bps := d.Mul(decimal.NewFromInt(100))
	if !bps.IsInteger() || !bps.BigInt().IsInt64() {
		return 0, ErrInvalidRate
	}
	return bps.IntPart(), nil
}

// FormatRate renders basis points as a percentage string.
func FormatRate(bps int64) string {
	return decimal.New(bps, -2).StringFixed(2)
}
