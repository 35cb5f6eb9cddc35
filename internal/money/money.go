// Package money provides a fixed-point monetary value tied to an ISO-4217
// currency code. All arithmetic requires matching currencies; conversion is an
// explicit step owned by the currency package.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch is returned when arithmetic mixes two currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrInvalidAmount is returned when an amount string cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
)

// minorDigits maps currencies whose minor unit is not the usual 2 decimals.
var minorDigits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// Money is an immutable amount in a single currency.
// The zero value is 0 in the empty currency and is only useful as a placeholder.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money from a decimal amount and a currency code.
// The code is normalized to upper case.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// FromString parses a decimal string such as "12.34".
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return New(d, currency), nil
}

// FromMinorUnits builds a Money from the smallest currency unit
// (cents for USD, whole yen for JPY).
func FromMinorUnits(units int64, currency string) Money {
	c := strings.ToUpper(currency)
	return Money{Amount: decimal.New(units, -MinorDigits(c)), Currency: c}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return New(decimal.Zero, currency)
}

// MinorDigits reports the number of decimal places of the currency's smallest
// unit. Unknown currencies default to 2.
func MinorDigits(currency string) int32 {
	if d, ok := minorDigits[strings.ToUpper(currency)]; ok {
		return d
	}
	return 2
}

// Epsilon returns one minor unit of m's currency, the threshold below which
// amounts are treated as settled.
func (m Money) Epsilon() decimal.Decimal {
	return decimal.New(1, -MinorDigits(m.Currency))
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.Amount.Add(other.Amount), m.Currency), nil
}

// Sub returns m - other. Both operands must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.Amount.Sub(other.Amount), m.Currency), nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return New(m.Amount.Neg(), m.Currency)
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return New(m.Amount.Abs(), m.Currency)
}

// Mul scales the amount by factor and rounds to the currency's minor unit,
// half up. Used by currency conversion.
func (m Money) Mul(factor decimal.Decimal) Money {
	return New(m.Amount.Mul(factor).RoundBank(MinorDigits(m.Currency)), m.Currency)
}

// Round snaps the amount to the currency's minor unit, half up.
func (m Money) Round() Money {
	return New(m.Amount.Round(MinorDigits(m.Currency)), m.Currency)
}

// Cmp compares the amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Sign reports the sign of the amount: -1, 0 or 1.
func (m Money) Sign() int {
	return m.Amount.Sign()
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Negligible reports whether |amount| is smaller than one minor unit,
// i.e. the amount is settled for all practical purposes.
func (m Money) Negligible() bool {
	return m.Amount.Abs().LessThan(m.Epsilon())
}

// Split divides m into n parts that sum exactly to m. The amount is truncated
// to the minor unit per part and the remainder is handed out one minor unit at
// a time starting with the first part, so callers that sort recipients first
// get deterministic residual assignment.
func (m Money) Split(n int) ([]Money, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split into %d parts", n)
	}
	digits := MinorDigits(m.Currency)
	unit := decimal.New(1, -digits)
	base := m.Amount.DivRound(decimal.NewFromInt(int64(n)), digits+1).RoundDown(digits)
	remainder := m.Amount.Sub(base.Mul(decimal.NewFromInt(int64(n))))

	parts := make([]Money, n)
	for i := range parts {
		amt := base
		if remainder.GreaterThanOrEqual(unit) {
			amt = amt.Add(unit)
			remainder = remainder.Sub(unit)
		}
		parts[i] = New(amt, m.Currency)
	}
	// Any sub-minor-unit residue sticks to the first part to keep the sum exact.
	if !remainder.IsZero() {
		parts[0] = New(parts[0].Amount.Add(remainder), m.Currency)
	}
	return parts, nil
}

// String renders the amount at minor-unit precision followed by the code,
// e.g. "12.30 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(MinorDigits(m.Currency)) + " " + m.Currency
}
