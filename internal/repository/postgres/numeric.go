package postgres

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// numericScale matches total_commission_amount NUMERIC(20,4).
const (
	numericScale     = 4
	numericPrecision = 20
)

var numericLimit = decimal.New(1, numericPrecision-numericScale)

// normalizeNumeric checks that s fits the commission amount column and returns
// it as a plain decimal literal, keeping the scale the caller wrote. Amounts are
// passed to Postgres as text so no float rounding happens on the way in.
func normalizeNumeric(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty numeric string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("parse numeric %q: %w", s, err)
	}
	if d.Exponent() < -numericScale {
		return "", fmt.Errorf("parse numeric %q: more than %d decimal places", s, numericScale)
	}
	if d.Abs().GreaterThanOrEqual(numericLimit) {
		return "", fmt.Errorf("parse numeric %q: too many integer digits", s)
	}

	places := int32(0)
	if d.Exponent() < 0 {
		places = -d.Exponent()
	}
	return d.StringFixed(places), nil
}
