package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAmount indicates a malformed decimal amount string.
var ErrInvalidAmount = errors.New("invalid amount")

// Amounts travel as decimal strings (matching numeric(12,2) columns) and
// are summed in integer cents to avoid float drift.

// parseCents parses a "123.45"-style amount into cents. Up to two fraction
// digits; negative amounts are rejected.
func parseCents(amount string) (int64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, amount)
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	var cents int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}

	return units*100 + cents, nil
}

// formatCents renders cents back to a two-fraction-digit decimal string.
func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// addAmounts sums two decimal amount strings.
func addAmounts(a, b string) (string, error) {
	ac, err := parseCents(a)
	if err != nil {
		return "", err
	}
	bc, err := parseCents(b)
	if err != nil {
		return "", err
	}
	return formatCents(ac + bc), nil
}
