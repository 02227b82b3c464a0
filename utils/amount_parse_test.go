package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount_Formats(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"20,000.50", "20000.5"},
		{"USD 500.00", "500"},
		{"usd 1,234.56", "1234.56"},
		{"-250.75", "-250.75"},
		{"USD -5.00", "-5"},
		{" 42 ", "42"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, want)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	cases := []string{
		"", "   ", "abc", "USD", "-", "..", "1.2.3",
		// Malformed money must be rejected, never coerced to the digits it
		// happens to contain.
		"12-34",
		"refund#99",
		"1,2,3",
		"12,34",
		"4 0 4",
		"12abc34",
		"USD USD 5",
		"5.",
		".5,0",
		"--5",
	}
	for _, in := range cases {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) should fail", in)
		}
		if _, err := ParseAmount(in); err != nil && !IsValidationError(err) {
			t.Fatalf("ParseAmount(%q): expected ValidationError, got %T", in, err)
		}
	}
}

func TestRequirePositiveAmount(t *testing.T) {
	if err := RequirePositiveAmount(decimal.NewFromInt(1)); err != nil {
		t.Fatalf("positive amount rejected: %v", err)
	}
	if err := RequirePositiveAmount(decimal.Zero); err == nil {
		t.Fatal("zero amount should be rejected")
	}
	if err := RequirePositiveAmount(decimal.NewFromInt(-1)); err == nil {
		t.Fatal("negative amount should be rejected")
	}
}
