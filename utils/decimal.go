package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount accepts common provider-formatted amount strings:
// - "20,000"
// - "USD 500.00"
// - "usd -1,234.50"
//
// The allowed shape is an optional alphabetic currency prefix separated by a
// space, an optional leading '-', digits with optional comma thousands
// grouping, and at most one decimal point followed by digits. Anything else
// is a ValidationError; a malformed amount is rejected, never coerced.
func ParseAmount(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	if fields := strings.Fields(s); len(fields) == 2 && isAlpha(fields[0]) {
		s = fields[1]
	}
	clean, ok := normalizeAmount(s)
	if !ok {
		return decimal.Zero, NewValidationError("amount", "invalid amount value")
	}
	val, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "invalid amount value")
	}
	return val, nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalizeAmount validates the numeric shape and strips grouping commas.
// Comma grouping is strict: the first group is 1-3 digits, every later group
// exactly 3, so "1,2,3" does not pass as 123.
func normalizeAmount(s string) (string, bool) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i+1:]
		if !isDigits(frac) {
			return "", false
		}
	}
	groups := strings.Split(intPart, ",")
	for i, g := range groups {
		if !isDigits(g) {
			return "", false
		}
		if len(groups) > 1 {
			if i == 0 && len(g) > 3 {
				return "", false
			}
			if i > 0 && len(g) != 3 {
				return "", false
			}
		}
	}
	clean := strings.Join(groups, "")
	if frac != "" {
		clean += "." + frac
	}
	if neg {
		clean = "-" + clean
	}
	return clean, true
}

// RequirePositiveAmount is the posting-boundary check: ledger amounts are
// strictly positive; direction carries the sign.
func RequirePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	return nil
}
