package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustFromString(t *testing.T, amount, currency string) Money {
	t.Helper()
	m, err := FromString(amount, currency)
	if err != nil {
		t.Fatalf("FromString(%q, %q) failed: %v", amount, currency, err)
	}
	return m
}

func TestFromString(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		wantErr  bool
		want     string
	}{
		{name: "plain decimal", amount: "12.34", currency: "usd", want: "12.34 USD"},
		{name: "whitespace trimmed", amount: " 5.00 ", currency: "EUR", want: "5.00 EUR"},
		{name: "zero-decimal currency", amount: "1200", currency: "JPY", want: "1200 JPY"},
		{name: "three-decimal currency", amount: "1.234", currency: "BHD", want: "1.234 BHD"},
		{name: "garbage", amount: "twelve", currency: "USD", wantErr: true},
		{name: "empty", amount: "", currency: "USD", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromString(tt.amount, tt.currency)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("FromString(%q) error = %v, want ErrInvalidAmount", tt.amount, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromString(%q) failed: %v", tt.amount, err)
			}
			if got := m.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddCurrencyMismatch(t *testing.T) {
	usd := mustFromString(t, "1.00", "USD")
	eur := mustFromString(t, "1.00", "EUR")

	if _, err := usd.Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Add across currencies error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := usd.Sub(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Sub across currencies error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := usd.Cmp(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Cmp across currencies error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestFromMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		units    int64
		currency string
		want     string
	}{
		{name: "usd cents", units: 1234, currency: "USD", want: "12.34 USD"},
		{name: "whole yen", units: 1200, currency: "JPY", want: "1200 JPY"},
		{name: "dinar fils", units: 1234, currency: "BHD", want: "1.234 BHD"},
		{name: "negative", units: -50, currency: "USD", want: "-0.50 USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMinorUnits(tt.units, tt.currency).String(); got != tt.want {
				t.Errorf("FromMinorUnits(%d, %s) = %q, want %q", tt.units, tt.currency, got, tt.want)
			}
		})
	}
}

func TestNegligible(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		ccy    string
		want   bool
	}{
		{name: "zero", amount: "0", ccy: "USD", want: true},
		{name: "half cent", amount: "0.005", ccy: "USD", want: true},
		{name: "one cent", amount: "0.01", ccy: "USD", want: false},
		{name: "negative half cent", amount: "-0.005", ccy: "USD", want: true},
		{name: "yen fraction", amount: "0.9", ccy: "JPY", want: true},
		{name: "whole yen", amount: "1", ccy: "JPY", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustFromString(t, tt.amount, tt.ccy)
			if got := m.Negligible(); got != tt.want {
				t.Errorf("Negligible(%s) = %v, want %v", m, got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		currency  string
		parts     int
		wantErr   bool
		wantParts []string
	}{
		{
			name:      "even split",
			amount:    "30.00",
			currency:  "USD",
			parts:     3,
			wantParts: []string{"10.00", "10.00", "10.00"},
		},
		{
			name:      "remainder to earliest parts",
			amount:    "10.00",
			currency:  "USD",
			parts:     3,
			wantParts: []string{"3.34", "3.33", "3.33"},
		},
		{
			name:      "yen has no cents",
			amount:    "100",
			currency:  "JPY",
			parts:     3,
			wantParts: []string{"34", "33", "33"},
		},
		{
			name:      "single part",
			amount:    "7.77",
			currency:  "USD",
			parts:     1,
			wantParts: []string{"7.77"},
		},
		{
			name:     "zero parts",
			amount:   "1.00",
			currency: "USD",
			parts:    0,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustFromString(t, tt.amount, tt.currency)
			parts, err := m.Split(tt.parts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Split succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Split failed: %v", err)
			}

			sum := decimal.Zero
			for i, p := range parts {
				if got := p.Amount.StringFixed(MinorDigits(tt.currency)); got != tt.wantParts[i] {
					t.Errorf("part[%d] = %s, want %s", i, got, tt.wantParts[i])
				}
				sum = sum.Add(p.Amount)
			}
			if !sum.Equal(m.Amount) {
				t.Errorf("parts sum to %s, want %s", sum, m.Amount)
			}
		})
	}
}

func TestMulRoundsToMinorUnit(t *testing.T) {
	m := mustFromString(t, "10.00", "USD")
	rate := decimal.RequireFromString("0.123456")

	got := m.Mul(rate)
	if got.String() != "1.23 USD" {
		t.Errorf("Mul = %s, want 1.23 USD", got)
	}
}
