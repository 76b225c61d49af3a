package types

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseQuantity parses an amount+unit token, e.g. "5000ETB" or "50.5 usdt".
// The token is a leading numeric run (digits and '.') followed by an
// alphabetic unit. The value must be positive, the unit is uppercased
func ParseQuantity(token string) (Quantity, error) {
	s := strings.TrimSpace(token)

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	if split == -1 {
		split = len(s)
	}

	var (
		numeric = s[:split]
		unit    = strings.TrimSpace(s[split:])
	)

	if numeric == "" {
		return Quantity{}, fmt.Errorf("%w: missing numeric value in %q", ErrInvalidAmount, token)
	}

	if unit == "" {
		return Quantity{}, fmt.Errorf("%w: missing unit in %q", ErrInvalidAmount, token)
	}

	for _, r := range unit {
		if !unicode.IsLetter(r) {
			return Quantity{}, fmt.Errorf("%w: invalid unit %q", ErrInvalidAmount, unit)
		}
	}

	value, err := decimal.NewFromString(numeric)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: non-numeric value %q", ErrInvalidAmount, numeric)
	}

	if !value.IsPositive() {
		return Quantity{}, fmt.Errorf("%w: value must be positive", ErrInvalidAmount)
	}

	return Quantity{
		Value: value,
		Unit:  NormalizeCurrency(unit),
	}, nil
}
