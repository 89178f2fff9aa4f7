package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidFormat = errors.New("invalid money format")

var hundred = decimal.NewFromInt(100)

// Money is an amount in minor currency units (cents).
type Money struct {
	cents int64
}

func Zero() Money {
	return Money{}
}

func FromMinorUnits(n int64) Money {
	return Money{cents: n}
}

// FromDecimal rounds d half-up to 2 decimal places.
func FromDecimal(d decimal.Decimal) Money {
	return Money{cents: d.Round(2).Mul(hundred).IntPart()}
}

// Parse converts a decimal display string ("12.34", "7", "-0.005") into Money.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty string", ErrInvalidFormat)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return FromDecimal(d), nil
}

// ParseOrZero is the log-and-default boundary for untrusted input: malformed
// values are logged and treated as zero.
func ParseOrZero(logger *slog.Logger, field, s string) Money {
	m, err := Parse(s)
	if err != nil {
		if logger != nil {
			logger.Warn("defaulting malformed amount to zero",
				slog.String("field", field),
				slog.String("value", s),
				slog.String("error", err.Error()),
			)
		}
		return Money{}
	}
	return m
}

func (m Money) MinorUnits() int64 {
	return m.cents
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -2)
}

func (m Money) Add(o Money) Money {
	return Money{cents: m.cents + o.cents}
}

func (m Money) Sub(o Money) Money {
	return Money{cents: m.cents - o.cents}
}

func (m Money) Mul(qty int64) Money {
	return Money{cents: m.cents * qty}
}

// PercentageOf multiplies by a fractional rate (0.08875 for 8.875%) and
// rounds half-up to cents.
func (m Money) PercentageOf(rate decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(rate))
}

// ClampZero returns m, or zero when m is negative.
func (m Money) ClampZero() Money {
	if m.cents < 0 {
		return Money{}
	}
	return m
}

func (m Money) IsZero() bool {
	return m.cents == 0
}

func (m Money) IsPositive() bool {
	return m.cents > 0
}

func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

// String renders the amount with exactly two decimals, e.g. "8.88".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Value stores the amount as an integer number of cents.
func (m Money) Value() (driver.Value, error) {
	return m.cents, nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.cents = 0
	case int64:
		m.cents = v
	case int32:
		m.cents = int64(v)
	case int:
		m.cents = int64(v)
	case float64:
		m.cents = decimal.NewFromFloat(v).Round(0).IntPart()
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}

func (m *Money) scanString(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("money: scan %q: %w", s, err)
	}
	m.cents = d.Round(0).IntPart()
	return nil
}
