// Package currency converts amounts into the base currency with a static,
// user-configured USD rate.
package currency

import (
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultUSDRate is used until the user saves a rate of their own.
const DefaultUSDRate = 41.5

// Normalize returns amount expressed in the base currency.
// The base currency passes through untouched; USD is multiplied by rate.
func Normalize(amount float64, cur domain.Currency, rate float64) (float64, error) {
	if err := ValidateAmount(amount); err != nil {
		return 0, err
	}

	switch cur {
	case domain.BaseCurrency, "":
		return amount, nil
	case domain.USD:
		if err := ValidateAmount(rate); err != nil {
			return 0, fmt.Errorf("Normalize: rate: %w", err)
		}
		converted, _ := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).Float64()
		return converted, nil
	default:
		return 0, fmt.Errorf("Normalize: unsupported currency %q: %w", cur, domain.ErrInvalidAmount)
	}
}

// Conversion is the result of turning a parsed amount into a stored one.
type Conversion struct {
	Amount           float64
	OriginalAmount   *float64
	OriginalCurrency domain.Currency
}

// Convert applies Normalize and records the original pair when the source
// currency differs from the base currency.
func Convert(amount float64, cur domain.Currency, rate float64) (Conversion, error) {
	amount = math.Abs(amount)
	base, err := Normalize(amount, cur, rate)
	if err != nil {
		return Conversion{}, err
	}

	c := Conversion{Amount: base}
	if cur != "" && cur != domain.BaseCurrency {
		c.OriginalAmount = domain.Float(amount)
		c.OriginalCurrency = cur
	}
	return c, nil
}

// ValidateAmount rejects zero, negative and non-finite values.
func ValidateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAmount, v)
	}
	return nil
}

// ParseAmount parses user input such as "41,5" or " 41.5 ".
func ParseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, fmt.Errorf("ParseAmount: %w", domain.ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ParseAmount: %q: %w", s, domain.ErrInvalidAmount)
	}
	v, _ := d.Float64()
	if err := ValidateAmount(v); err != nil {
		return 0, fmt.Errorf("ParseAmount: %w", err)
	}
	return v, nil
}

// FromMinorUnits converts kopecks or cents into whole units.
func FromMinorUnits(minor int64) float64 {
	v, _ := decimal.New(minor, -2).Float64()
	return v
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}
