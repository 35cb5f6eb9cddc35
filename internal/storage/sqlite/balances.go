package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/splitterhq/balances/internal/models"
)

const balanceColumns = "group_id, user_a, user_b, currency, amount_minor, updated_at"

// GetGroupBalances retrieves every materialized balance row for a group,
// zero-valued rows included.
func (s *SQLiteStore) GetGroupBalances(ctx context.Context, groupID string) ([]*models.NetBalance, error) {
	return s.queryBalances(ctx,
		"SELECT "+balanceColumns+" FROM balances WHERE group_id = ? ORDER BY user_a, user_b, currency",
		groupID,
	)
}

// GetBalanceBetween retrieves the per-currency balances of one canonical pair.
func (s *SQLiteStore) GetBalanceBetween(ctx context.Context, groupID, userA, userB string) ([]*models.NetBalance, error) {
	return s.queryBalances(ctx,
		"SELECT "+balanceColumns+" FROM balances WHERE group_id = ? AND user_a = ? AND user_b = ? ORDER BY currency",
		groupID, userA, userB,
	)
}

// GetUserBalances retrieves every non-zero balance involving the user across groups.
func (s *SQLiteStore) GetUserBalances(ctx context.Context, userID string) ([]*models.NetBalance, error) {
	return s.queryBalances(ctx,
		`SELECT `+balanceColumns+` FROM balances
		 WHERE (user_a = ? OR user_b = ?) AND amount_minor != 0
		 ORDER BY group_id, user_a, user_b, currency`,
		userID, userID,
	)
}

// ReplaceGroupBalances swaps the group's balance set in one transaction.
// Zero-valued balances are not written; absence already means zero.
func (s *SQLiteStore) ReplaceGroupBalances(ctx context.Context, groupID string, balances []*models.NetBalance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM balances WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to clear group balances: %w", err)
	}

	now := time.Now().UnixNano()
	for _, b := range balances {
		if b.Amount.IsZero() {
			continue
		}
		updatedAt := b.UpdatedAt.UnixNano()
		if b.UpdatedAt.IsZero() {
			updatedAt = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO balances (group_id, user_a, user_b, currency, amount_minor, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			groupID, b.UserA, b.UserB, b.Amount.Currency, toMinor(b.Amount), updatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStore) queryBalances(ctx context.Context, query string, args ...interface{}) ([]*models.NetBalance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*models.NetBalance
	for rows.Next() {
		b := &models.NetBalance{}
		var (
			currency    string
			amountMinor int64
			updatedAt   int64
		)
		if err := rows.Scan(&b.GroupID, &b.UserA, &b.UserB, &currency, &amountMinor, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Amount = fromMinor(amountMinor, currency)
		b.UpdatedAt = time.Unix(0, updatedAt)
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	return balances, nil
}
