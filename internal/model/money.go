package model

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned for amounts that are not a finite number
// strictly greater than zero once rounded to cents.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is an amount in cents.
type Money int64

// ParseMoney converts a decimal string to cents, rounding half-up on the third
// fractional digit. Both "12.34" and "12,34" are accepted. Signs, exponents and
// anything that rounds to zero are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	cents, err := decimalCents(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return Money(cents), nil
}

// decimalCents parses unsigned "123", "123.4" or ".45" into cents without
// going through floating point.
func decimalCents(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") || intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, ErrInvalidAmount
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxUnits = (1<<63 - 1) / 100
	if iv >= maxUnits {
		return 0, ErrInvalidAmount
	}

	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
	}
	if len(fracPart) > 1 {
		frac += int64(fracPart[1] - '0')
	}
	if len(fracPart) > 2 && fracPart[2] >= '5' {
		frac++
	}
	return iv*100 + frac, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Cents returns the raw cent value.
func (m Money) Cents() int64 {
	return int64(m)
}

// Float returns the amount in currency units. Use it for display only.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	neg := m < 0
	v := int64(m)
	if neg {
		v = -v
	}
	units := strconv.FormatInt(v/100, 10)
	frac := strconv.FormatInt(v%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	if neg {
		return "-" + units + "." + frac
	}
	return units + "." + frac
}

// DivRound divides the amount by n, rounding half away from zero. It returns
// 0 when n is 0.
func (m Money) DivRound(n int) Money {
	if n == 0 {
		return 0
	}
	v, d := int64(m), int64(n)
	q, r := v/d, v%d
	if r < 0 {
		r = -r
	}
	if 2*r >= d {
		if v < 0 {
			q--
		} else {
			q++
		}
	}
	return Money(q)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads a JSON number or numeric string with the same exact
// decimal rules as ParseMoney, except that negatives and zero are allowed.
func (m *Money) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unq)
	}
	neg := strings.HasPrefix(text, "-")
	cents, err := decimalCents(strings.TrimPrefix(text, "-"))
	if err != nil {
		return err
	}
	if neg {
		cents = -cents
	}
	*m = Money(cents)
	return nil
}
