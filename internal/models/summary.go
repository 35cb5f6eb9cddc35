package models

import (
	"time"

	"github.com/splitterhq/balances/internal/money"
)

// UserBalance is one user's position within a group for one currency.
type UserBalance struct {
	UserID   string      `json:"user_id"`
	Currency string      `json:"currency"`
	Paid     money.Money `json:"paid"`
	Owed     money.Money `json:"owed"`
	Net      money.Money `json:"net"`
}

// GroupSummary is the composed balance report for a group: per-user figures,
// total expenses, and the simplified settlement plan.
//
// When a display currency was requested and every balance could be converted,
// Converted is true and all figures are in DisplayCurrency. If the rate lookup
// failed or timed out the summary degrades: Converted is false and figures
// stay grouped by their native currencies.
type GroupSummary struct {
	GroupID         string           `json:"group_id"`
	DisplayCurrency string           `json:"display_currency,omitempty"`
	Converted       bool             `json:"converted"`
	TotalExpenses   []money.Money    `json:"total_expenses"`
	UserBalances    []UserBalance    `json:"user_balances"`
	SimplifiedDebts []SimplifiedDebt `json:"simplified_debts"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// UserSummary aggregates a user's balances across every group they appear in.
type UserSummary struct {
	UserID string `json:"user_id"`

	// TotalOwedToUser sums, per currency, what others owe the user.
	TotalOwedToUser []money.Money `json:"total_owed_to_user"`

	// TotalUserOwes sums, per currency, what the user owes others.
	TotalUserOwes []money.Money `json:"total_user_owes"`

	// Balances lists every non-zero pairwise balance involving the user.
	Balances []*NetBalance `json:"balances"`
}
