package models

import (
	"testing"

	"github.com/splitterhq/balances/internal/money"
)

func TestCanonicalPair(t *testing.T) {
	if a, b := CanonicalPair("bob", "alice"); a != "alice" || b != "bob" {
		t.Errorf("CanonicalPair(bob, alice) = (%s, %s), want (alice, bob)", a, b)
	}
	if a, b := CanonicalPair("alice", "bob"); a != "alice" || b != "bob" {
		t.Errorf("CanonicalPair(alice, bob) = (%s, %s), want (alice, bob)", a, b)
	}
}

func TestDeltaFor(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		// bob owes alice: alice is canonical UserA, positive means UserB owes UserA.
		{name: "debtor sorts second", from: "bob", to: "alice", want: "10"},
		// alice owes bob: the canonical pair is the same but the sign flips.
		{name: "debtor sorts first", from: "alice", to: "bob", want: "-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &LedgerEntry{
				GroupID:    "g1",
				FromUserID: tt.from,
				ToUserID:   tt.to,
				Amount:     money.FromMinorUnits(1000, "USD"),
				Kind:       EntryExpense,
			}
			delta := DeltaFor(entry)
			if delta.UserA != "alice" || delta.UserB != "bob" {
				t.Errorf("pair = (%s, %s), want (alice, bob)", delta.UserA, delta.UserB)
			}
			if delta.Amount.String() != tt.want {
				t.Errorf("delta = %s, want %s", delta.Amount, tt.want)
			}
		})
	}
}

func TestDebtorCreditor(t *testing.T) {
	tests := []struct {
		name         string
		amount       int64
		wantDebtor   string
		wantCreditor string
	}{
		{name: "positive means user_b owes", amount: 1000, wantDebtor: "bob", wantCreditor: "alice"},
		{name: "negative means user_a owes", amount: -1000, wantDebtor: "alice", wantCreditor: "bob"},
		{name: "zero means settled", amount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NetBalance{
				GroupID: "g1",
				UserA:   "alice",
				UserB:   "bob",
				Amount:  money.FromMinorUnits(tt.amount, "USD"),
			}
			debtor, creditor, amount := b.DebtorCreditor()
			if debtor != tt.wantDebtor || creditor != tt.wantCreditor {
				t.Errorf("DebtorCreditor = (%s, %s), want (%s, %s)", debtor, creditor, tt.wantDebtor, tt.wantCreditor)
			}
			if amount.IsNegative() {
				t.Errorf("amount %s is negative", amount)
			}
		})
	}
}
