package currency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitterhq/balances/internal/money"
)

func TestStaticConvert(t *testing.T) {
	converter := NewStatic(map[string]decimal.Decimal{
		"USD/EUR": decimal.RequireFromString("0.85"),
		"EUR/USD": decimal.RequireFromString("1.18"),
	})
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		amount  string
		from    string
		to      string
		want    string
		wantErr bool
	}{
		{name: "known rate", amount: "10.00", from: "USD", to: "EUR", want: "8.50 EUR"},
		{name: "reverse rate", amount: "10.00", from: "EUR", to: "USD", want: "11.80 USD"},
		{name: "same currency", amount: "10.00", from: "USD", to: "USD", want: "10.00 USD"},
		{name: "missing pair", amount: "10.00", from: "USD", to: "GBP", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := money.FromString(tt.amount, tt.from)
			if err != nil {
				t.Fatalf("bad amount: %v", err)
			}
			got, err := converter.Convert(ctx, amount, tt.to, now)
			if tt.wantErr {
				if !errors.Is(err, ErrRateUnavailable) {
					t.Errorf("Convert error = %v, want ErrRateUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Convert = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClientConvert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") != "USD" || q.Get("to") != "EUR" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("amount") != "10" {
			t.Errorf("amount = %s, want 10", q.Get("amount"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"converted_amount": "8.50", "to_currency": "EUR"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	amount, _ := money.FromString("10.00", "USD")

	got, err := client.Convert(context.Background(), amount, "EUR", time.Now())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got.String() != "8.50 EUR" {
		t.Errorf("Convert = %s, want 8.50 EUR", got)
	}
}

func TestClientConvertSameCurrencySkipsNetwork(t *testing.T) {
	client := NewClient("http://broken.invalid", time.Second)
	amount, _ := money.FromString("10.00", "USD")

	got, err := client.Convert(context.Background(), amount, "USD", time.Now())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got.String() != "10.00 USD" {
		t.Errorf("Convert = %s, want 10.00 USD", got)
	}
}

func TestClientConvertFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "unparseable amount",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"converted_amount": "many", "to_currency": "EUR"}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, 50*time.Millisecond)
			amount, _ := money.FromString("10.00", "USD")

			if _, err := client.Convert(context.Background(), amount, "EUR", time.Now()); !errors.Is(err, ErrRateUnavailable) {
				t.Errorf("Convert error = %v, want ErrRateUnavailable", err)
			}
		})
	}
}
