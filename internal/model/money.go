package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents).
type Money int64

// Cents returns m as a raw cent count.
func (m Money) Cents() int64 {
	return int64(m)
}

// Float64 returns m in major units. Only for display.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// Mul multiplies m by a quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// String formats m as a plain decimal with two fraction digits ("13.60").
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalText implements encoding.TextMarshaler.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so amounts can be read
// from environment variables and flags.
func (m *Money) UnmarshalText(text []byte) error {
	parsed, err := ParseMoney(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// maxWholeUnits is the largest whole part whose cents, plus any fraction,
// still fit in a Money.
const maxWholeUnits = (math.MaxInt64 - 99) / 100

// ParseMoney parses a non-negative decimal amount with at most two fraction
// digits ("5", "5.0", "20.00").
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("parse money %q: expected at most two decimals", s)
	}
	units, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	if units > maxWholeUnits {
		return 0, fmt.Errorf("parse money %q: amount out of range", s)
	}
	var cents uint64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseUint(frac, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("parse money %q: %w", s, err)
		}
	}
	return Money(units*100 + cents), nil
}

// MoneyFromFloat converts a decimal price (as found in catalog documents) to
// cents, rounding half away from zero. Negative and non-finite values are
// rejected.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("money from float: not a finite number")
	}
	if f < 0 {
		return 0, fmt.Errorf("money from float: negative amount %v", f)
	}
	cents := math.Round(f * 100)
	if cents >= math.MaxInt64 {
		return 0, fmt.Errorf("money from float: amount %v out of range", f)
	}
	return Money(cents), nil
}

// MustMoney is ParseMoney for constants in tests and defaults.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}
