// Package price turns scraped and stored price text into decimals.
package price

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned when text does not hold a positive price.
var ErrInvalidPrice = errors.New("invalid price")

var hundred = decimal.NewFromInt(100)

// storedPattern is a plain signed decimal, no exponent.
var storedPattern = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)$`)

// clean keeps digits and decimal points only, so "$1,299.00 USD" becomes "1299.00".
func clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse reads a price from raw extracted text. The result is always positive.
func Parse(raw string) (decimal.Decimal, error) {
	c := clean(raw)
	if c == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	d, err := decimal.NewFromString(c)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return d, nil
}

// ParseStored reads a price kept in the record store. An empty value is
// reported as absent (ok == false, err == nil). Only a leading currency
// symbol and thousands separators are tolerated; the sign is kept.
func ParseStored(s string) (d decimal.Decimal, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	c := normalizeStored(s)
	if !storedPattern.MatchString(c) {
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	d, err = decimal.NewFromString(c)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return d, true, nil
}

func normalizeStored(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	s = strings.TrimLeft(s, "$€£¥ ")
	s = strings.ReplaceAll(s, ",", "")
	if neg {
		s = "-" + s
	}
	return s
}

// Format renders a price with two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// PercentChange returns (newPrice-oldPrice)/oldPrice*100. oldPrice must be non-zero.
func PercentChange(oldPrice, newPrice decimal.Decimal) decimal.Decimal {
	return newPrice.Sub(oldPrice).Div(oldPrice).Mul(hundred)
}
