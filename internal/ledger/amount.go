package ledger

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.trai.ch/zerr"
)

// maxAmount bounds parsed amounts well inside int64 cents.
var maxAmount = decimal.NewFromInt(1_000_000_000_000)

// ParseAmount converts a user-entered dollar amount ("-12.5", "$1,200.00") to cents.
// Amounts with more than two significant decimal places are rejected.
func ParseAmount(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, "$", "")
	if clean == "" {
		return 0, zerr.With(zerr.Wrap(ErrInvalidAmount, "empty amount"), "input", s)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, zerr.With(errors.Join(ErrInvalidAmount, err), "input", s)
	}
	if !d.Equal(d.Round(2)) {
		return 0, zerr.With(zerr.Wrap(ErrInvalidAmount, "more than two decimal places"), "input", s)
	}
	if d.Abs().GreaterThan(maxAmount) {
		return 0, zerr.With(zerr.Wrap(ErrInvalidAmount, "amount out of range"), "input", s)
	}
	return d.Shift(2).IntPart(), nil
}

// FormatCents renders cents as a signed dollar string with two decimals.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
