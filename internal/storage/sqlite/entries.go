package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitterhq/balances/internal/models"
	"github.com/splitterhq/balances/internal/money"
	"github.com/splitterhq/balances/internal/storage"
)

// AppendEntry inserts the entry and applies its balance delta in one
// transaction. A conflicting (reference_id, kind) leaves the database
// untouched and returns the previously stored entry.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry, delta models.BalanceDelta) (*models.LedgerEntry, bool, error) {
	// Generate ID and timestamp if not set
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var description interface{}
	if entry.Description != "" {
		description = entry.Description
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, group_id, from_user_id, to_user_id, amount_minor, currency, kind, reference_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (reference_id, kind) DO NOTHING`,
		entry.ID, entry.GroupID, entry.FromUserID, entry.ToUserID,
		toMinor(entry.Amount), entry.Amount.Currency, string(entry.Kind),
		entry.ReferenceID, description, entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Duplicate delivery: hand back the stored entry unchanged.
		existing, err := s.getEntryByReference(ctx, entry.ReferenceID, entry.Kind)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	deltaMinor := delta.Amount.Shift(money.MinorDigits(delta.Currency)).IntPart()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (group_id, user_a, user_b, currency, amount_minor, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, user_a, user_b, currency)
		 DO UPDATE SET amount_minor = amount_minor + excluded.amount_minor, updated_at = excluded.updated_at`,
		delta.GroupID, delta.UserA, delta.UserB, delta.Currency,
		deltaMinor, entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply balance delta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entry, true, nil
}

// ListEntriesSince pages through a group's entries in (created_at, id) order.
func (s *SQLiteStore) ListEntriesSince(ctx context.Context, groupID string, cursor storage.Cursor, limit int) ([]*models.LedgerEntry, storage.Cursor, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_user_id, to_user_id, amount_minor, currency, kind, reference_id, description, created_at
		 FROM ledger_entries
		 WHERE group_id = ? AND (created_at > ? OR (created_at = ? AND id > ?))
		 ORDER BY created_at, id
		 LIMIT ?`,
		groupID, cursor.CreatedAt, cursor.CreatedAt, cursor.ID, limit,
	)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	next := cursor
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, cursor, err
		}
		entries = append(entries, entry)
		next = storage.Cursor{CreatedAt: entry.CreatedAt.UnixNano(), ID: entry.ID}
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, next, nil
}

// PruneEntriesBefore removes entries older than the horizon for retention.
func (s *SQLiteStore) PruneEntriesBefore(ctx context.Context, groupID string, horizon time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM ledger_entries WHERE group_id = ? AND created_at < ?",
		groupID, horizon.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned count: %w", err)
	}
	return removed, nil
}

// GroupHasEntries reports whether the group has any ledger history.
func (s *SQLiteStore) GroupHasEntries(ctx context.Context, groupID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE group_id = ?)", groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group entries: %w", err)
	}
	return exists == 1, nil
}

// ListGroupIDs returns every group that has ledger entries.
func (s *SQLiteStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT group_id FROM ledger_entries ORDER BY group_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group ids: %w", err)
	}
	defer rows.Close()

	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group ids: %w", err)
	}

	return groupIDs, nil
}

// GetGroupTotals aggregates paid/owed per user and currency over all entry
// kinds. Credits (to_user_id) count as paid, debits (from_user_id) as owed,
// so paid-owed matches the user's net position by construction.
func (s *SQLiteStore) GetGroupTotals(ctx context.Context, groupID string) ([]storage.UserTotals, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, currency, SUM(paid), SUM(owed) FROM (
		     SELECT to_user_id AS user_id, currency, amount_minor AS paid, 0 AS owed
		     FROM ledger_entries WHERE group_id = ?
		     UNION ALL
		     SELECT from_user_id, currency, 0, amount_minor
		     FROM ledger_entries WHERE group_id = ?
		 )
		 GROUP BY user_id, currency
		 ORDER BY user_id, currency`,
		groupID, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate group totals: %w", err)
	}
	defer rows.Close()

	var totals []storage.UserTotals
	for rows.Next() {
		var (
			userID, currency string
			paid, owed       int64
		)
		if err := rows.Scan(&userID, &currency, &paid, &owed); err != nil {
			return nil, fmt.Errorf("failed to scan group totals: %w", err)
		}
		totals = append(totals, storage.UserTotals{
			UserID:   userID,
			Currency: currency,
			Paid:     fromMinor(paid, currency),
			Owed:     fromMinor(owed, currency),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group totals: %w", err)
	}

	return totals, nil
}

// GetGroupExpenseTotals sums EXPENSE entries per currency.
func (s *SQLiteStore) GetGroupExpenseTotals(ctx context.Context, groupID string) ([]money.Money, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT currency, SUM(amount_minor) FROM ledger_entries
		 WHERE group_id = ? AND kind = ?
		 GROUP BY currency ORDER BY currency`,
		groupID, string(models.EntryExpense),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate expense totals: %w", err)
	}
	defer rows.Close()

	var totals []money.Money
	for rows.Next() {
		var (
			currency string
			minor    int64
		)
		if err := rows.Scan(&currency, &minor); err != nil {
			return nil, fmt.Errorf("failed to scan expense totals: %w", err)
		}
		totals = append(totals, fromMinor(minor, currency))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense totals: %w", err)
	}

	return totals, nil
}

func (s *SQLiteStore) getEntryByReference(ctx context.Context, referenceID string, kind models.EntryKind) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, from_user_id, to_user_id, amount_minor, currency, kind, reference_id, description, created_at
		 FROM ledger_entries WHERE reference_id = ? AND kind = ?`,
		referenceID, string(kind),
	)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{}
	var (
		amountMinor int64
		currency    string
		kind        string
		description sql.NullString
		createdAt   int64
	)
	err := row.Scan(&entry.ID, &entry.GroupID, &entry.FromUserID, &entry.ToUserID,
		&amountMinor, &currency, &kind, &entry.ReferenceID, &description, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	entry.Amount = fromMinor(amountMinor, currency)
	entry.Kind = models.EntryKind(kind)
	entry.CreatedAt = time.Unix(0, createdAt)
	if description.Valid {
		entry.Description = description.String
	}
	return entry, nil
}
