package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitterhq/balances/internal/money"
)

// NetBalance is the materialized net amount between two users in a group for
// one currency. UserA < UserB by convention; a positive Amount means UserB
// owes UserA, a negative one means UserA owes UserB.
type NetBalance struct {
	GroupID   string      `json:"group_id"`
	UserA     string      `json:"user_a"`
	UserB     string      `json:"user_b"`
	Amount    money.Money `json:"amount"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CanonicalPair orders two user IDs into the stable (UserA, UserB) form used
// for balance rows.
func CanonicalPair(x, y string) (userA, userB string) {
	if x < y {
		return x, y
	}
	return y, x
}

// DebtorCreditor resolves the signed balance into who owes whom. The returned
// amount is non-negative; both IDs are empty when the balance is zero.
func (b NetBalance) DebtorCreditor() (debtor, creditor string, amount money.Money) {
	switch b.Amount.Sign() {
	case 1:
		return b.UserB, b.UserA, b.Amount
	case -1:
		return b.UserA, b.UserB, b.Amount.Abs()
	default:
		return "", "", money.Zero(b.Amount.Currency)
	}
}

// BalanceDelta is the signed change an entry applies to a canonical pair
// balance. Deltas are plain commutative additions, which is what makes replay
// order-insensitive within a group.
type BalanceDelta struct {
	GroupID  string
	UserA    string
	UserB    string
	Currency string
	Amount   decimal.Decimal
}

// DeltaFor computes the canonical-pair delta for an entry. "From owes To"
// increases the pair balance when To is the canonical UserA (To is owed by the
// higher-sorting user) and decreases it otherwise.
func DeltaFor(e *LedgerEntry) BalanceDelta {
	a, b := CanonicalPair(e.FromUserID, e.ToUserID)
	amt := e.Amount.Amount
	if e.FromUserID == a {
		amt = amt.Neg()
	}
	return BalanceDelta{
		GroupID:  e.GroupID,
		UserA:    a,
		UserB:    b,
		Currency: e.Amount.Currency,
		Amount:   amt,
	}
}

// SimplifiedDebt is one payment in a settlement plan: FromUserID pays
// ToUserID the Amount. Plans are derived on demand and never persisted; they
// are valid only for the balance snapshot they were computed from.
type SimplifiedDebt struct {
	FromUserID string      `json:"from_user_id"`
	ToUserID   string      `json:"to_user_id"`
	Amount     money.Money `json:"amount"`
}
