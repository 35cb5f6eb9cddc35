package models

import (
	"time"

	"github.com/splitterhq/balances/internal/money"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	// EntryExpense records one participant's share of a paid expense.
	EntryExpense EntryKind = "EXPENSE"

	// EntrySettlement records a direct payment clearing (part of) a debt.
	EntrySettlement EntryKind = "SETTLEMENT"

	// EntryAdjustment records a manual correction. Adjustments fold into
	// balances exactly like the other kinds; the kind only matters for the
	// audit trail.
	EntryAdjustment EntryKind = "ADJUSTMENT"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryExpense, EntrySettlement, EntryAdjustment:
		return true
	}
	return false
}

// LedgerEntry is a single append-only balance event: FromUserID owes ToUserID
// the (non-negative) Amount. The pair (ReferenceID, Kind) is the idempotency
// key; at most one entry may exist per pair, so retried deliveries of the same
// upstream event are no-ops.
type LedgerEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// GroupID is the group this entry belongs to.
	GroupID string

	// FromUserID is the user who owes.
	FromUserID string

	// ToUserID is the user who is owed.
	ToUserID string

	// Amount is the owed amount; always non-negative.
	Amount money.Money

	// Kind classifies the entry.
	Kind EntryKind

	// ReferenceID ties the entry to the originating expense or settlement
	// and deduplicates retried deliveries.
	ReferenceID string

	// Description is an optional human-readable note.
	Description string

	// CreatedAt is when the entry was appended. Together with ID it forms
	// the replay ordering key.
	CreatedAt time.Time
}
