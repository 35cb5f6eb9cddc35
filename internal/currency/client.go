package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/splitterhq/balances/internal/money"
)

// Client talks to the currency service's conversion endpoint. Every call is
// bounded by the configured timeout; any failure surfaces as
// ErrRateUnavailable so callers can degrade instead of blocking the
// consistency-critical path.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a converter backed by the currency service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type conversionResponse struct {
	ConvertedAmount string `json:"converted_amount"`
	ToCurrency      string `json:"to_currency"`
}

// Convert asks the currency service to convert the amount as of the given
// date. Same-currency conversion short-circuits without a network call.
func (c *Client) Convert(ctx context.Context, amount money.Money, toCurrency string, asOf time.Time) (money.Money, error) {
	if amount.Currency == toCurrency {
		return amount, nil
	}

	q := url.Values{}
	q.Set("from", amount.Currency)
	q.Set("to", toCurrency)
	q.Set("amount", amount.Amount.String())
	q.Set("date", asOf.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/convert?"+q.Encode(), nil)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: build request: %v", ErrRateUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return money.Money{}, fmt.Errorf("%w: currency service returned %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body conversionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return money.Money{}, fmt.Errorf("%w: decode response: %v", ErrRateUnavailable, err)
	}

	converted, err := money.FromString(body.ConvertedAmount, toCurrency)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: bad amount %q", ErrRateUnavailable, body.ConvertedAmount)
	}
	return converted.Round(), nil
}
