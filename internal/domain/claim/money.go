package claim

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal money string. Amounts are carried as
// fixed-point decimals end to end; binary floats would corrupt the cent
// digits the carrier simulator keys on.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// FractionalCents returns the final two fractional digits of the amount as
// an integer in [0, 99]. 125.00 yields 0, 87.13 yields 13, 149.99 yields 99.
func FractionalCents(d decimal.Decimal) int {
	cents := d.Abs().Mul(decimal.NewFromInt(100)).Truncate(0)
	return int(cents.Mod(decimal.NewFromInt(100)).IntPart())
}

// FormatAmount renders the amount with exactly two decimal places, the
// form every rail payload uses.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
