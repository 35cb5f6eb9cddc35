// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/splitterhq/balances/internal/models"
	"github.com/splitterhq/balances/internal/money"
)

// ErrNotFound keeps storage-specific not-found results consistent across
// implementations. Services translate it into domain not-found errors.
var ErrNotFound = errors.New("record not found")

// Cursor marks a position in a group's entry log for restartable replay.
// Entries are ordered by (created_at, id); the zero Cursor starts from the
// beginning. Any cursor previously returned by ListEntriesSince may be reused.
type Cursor struct {
	CreatedAt int64 // unix nanoseconds
	ID        string
}

// IsZero reports whether the cursor is the start-of-log position.
func (c Cursor) IsZero() bool {
	return c.CreatedAt == 0 && c.ID == ""
}

// UserTotals aggregates one user's ledger flows within a group for one
// currency: Paid sums entries crediting the user (amounts owed to them),
// Owed sums entries debiting them. Paid minus Owed equals the user's net
// position.
type UserTotals struct {
	UserID   string
	Currency string
	Paid     money.Money
	Owed     money.Money
}

// Store is the persistence contract for the ledger and its materialized
// balances. Ledger entries are append-only: they are never mutated, and the
// only deletion path is retention pruning. This abstraction allows swapping
// storage backends without changing the service layer.
type Store interface {
	// AppendEntry atomically inserts the entry and applies its balance
	// delta. If an entry with the same (ReferenceID, Kind) already exists
	// the call is a no-op returning the stored entry and created=false;
	// duplicates are not errors, which makes at-least-once upstream
	// delivery safe to retry.
	AppendEntry(ctx context.Context, entry *models.LedgerEntry, delta models.BalanceDelta) (stored *models.LedgerEntry, created bool, err error)

	// ListEntriesSince returns up to limit entries of the group in replay
	// order, starting strictly after the cursor, plus the cursor of the
	// last returned entry.
	ListEntriesSince(ctx context.Context, groupID string, cursor Cursor, limit int) ([]*models.LedgerEntry, Cursor, error)

	// PruneEntriesBefore deletes the group's entries created strictly
	// before the horizon and reports how many were removed. Appends are
	// atomic with materialization, so pruned entries are always already
	// reflected in balances.
	PruneEntriesBefore(ctx context.Context, groupID string, horizon time.Time) (int64, error)

	// GroupHasEntries reports whether any ledger history exists for the group.
	GroupHasEntries(ctx context.Context, groupID string) (bool, error)

	// ListGroupIDs returns every group with ledger history, for maintenance
	// sweeps such as retention pruning.
	ListGroupIDs(ctx context.Context) ([]string, error)

	// GetGroupBalances returns every materialized balance row of the
	// group, including zero-valued ones.
	GetGroupBalances(ctx context.Context, groupID string) ([]*models.NetBalance, error)

	// GetBalanceBetween returns the per-currency balances of one canonical
	// pair. The result is empty (not an error) when the pair has no rows.
	GetBalanceBetween(ctx context.Context, groupID, userA, userB string) ([]*models.NetBalance, error)

	// GetUserBalances returns every non-zero balance involving the user
	// across all groups.
	GetUserBalances(ctx context.Context, userID string) ([]*models.NetBalance, error)

	// GetGroupTotals aggregates per-user paid/owed figures for the group.
	GetGroupTotals(ctx context.Context, groupID string) ([]UserTotals, error)

	// GetGroupExpenseTotals sums the group's EXPENSE entries per currency.
	GetGroupExpenseTotals(ctx context.Context, groupID string) ([]money.Money, error)

	// ReplaceGroupBalances atomically swaps the group's materialized
	// balance set, used when rebuilding from a full replay.
	ReplaceGroupBalances(ctx context.Context, groupID string, balances []*models.NetBalance) error

	// Close releases any resources held by the store.
	Close() error
}
