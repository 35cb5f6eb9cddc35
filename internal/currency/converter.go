// Package currency integrates the external exchange-rate collaborator. The
// engine only ever needs present-day conversion for display; rate accuracy and
// refresh are the collaborator's problem.
package currency

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitterhq/balances/internal/money"
)

// ErrRateUnavailable is returned when a rate cannot be obtained in time.
// Callers degrade to unconverted output rather than failing; only
// cross-currency display needs conversion, settlement correctness does not.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Converter resolves an amount into another currency as of a given date.
type Converter interface {
	Convert(ctx context.Context, amount money.Money, toCurrency string, asOf time.Time) (money.Money, error)
}

// Static converts using a fixed in-memory rate table, keyed "FROM/TO". It
// serves tests and single-currency deployments where no rate service runs.
type Static struct {
	rates map[string]decimal.Decimal
}

// NewStatic builds a Static converter from a rate table keyed "FROM/TO",
// e.g. {"EUR/USD": 1.08}.
func NewStatic(rates map[string]decimal.Decimal) *Static {
	copied := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	return &Static{rates: copied}
}

// Convert applies the configured rate, rounding to the target currency's
// minor unit. Missing pairs yield ErrRateUnavailable.
func (s *Static) Convert(_ context.Context, amount money.Money, toCurrency string, _ time.Time) (money.Money, error) {
	if amount.Currency == toCurrency {
		return amount, nil
	}
	rate, ok := s.rates[amount.Currency+"/"+toCurrency]
	if !ok {
		return money.Money{}, ErrRateUnavailable
	}
	return money.New(amount.Amount, toCurrency).Mul(rate), nil
}
