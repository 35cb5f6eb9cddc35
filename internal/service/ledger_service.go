// Package service implements the engine's operations on top of the storage
// layer: appending financial events, materializing balances, and composing
// balance reports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitterhq/balances/internal/cache"
	"github.com/splitterhq/balances/internal/metrics"
	"github.com/splitterhq/balances/internal/models"
	"github.com/splitterhq/balances/internal/money"
	"github.com/splitterhq/balances/internal/storage"
)

// rebuildBatchSize is the replay page size used when rebuilding balances.
const rebuildBatchSize = 500

// groupLocks hands out one mutex per group so appends to different groups
// proceed in parallel while same-group read-modify-write stays serialized.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*sync.Mutex)}
}

func (g *groupLocks) forGroup(groupID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[groupID] = l
	}
	return l
}

// LedgerService owns the write path: translating expense splits, settlements
// and adjustments into idempotent ledger appends, and keeping the
// materialized balances in step.
type LedgerService struct {
	store   storage.Store
	cache   *cache.SummaryCache
	metrics *metrics.Metrics
	locks   *groupLocks
}

// NewLedgerService creates a LedgerService. cache and m may be nil.
func NewLedgerService(store storage.Store, summaryCache *cache.SummaryCache, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		store:   store,
		cache:   summaryCache,
		metrics: m,
		locks:   newGroupLocks(),
	}
}

// RecordExpenseSplit appends one EXPENSE entry per non-payer share: each
// participant owes the payer their share. Share idempotency keys are derived
// as "<referenceID>/<userID>" so a retried expense event re-creates no entry
// while distinct shares of one expense stay individually keyed.
func (s *LedgerService) RecordExpenseSplit(ctx context.Context, groupID, payerID string, shares map[string]money.Money, referenceID, description string) ([]*models.LedgerEntry, error) {
	if groupID == "" || payerID == "" || referenceID == "" {
		return nil, fmt.Errorf("group, payer and reference IDs are required")
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("expense %s has no shares", referenceID)
	}

	// Deterministic append order keeps logs and tests stable.
	userIDs := make([]string, 0, len(shares))
	for userID := range shares {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	var entries []*models.LedgerEntry
	for _, userID := range userIDs {
		if userID == payerID {
			continue // the payer's own share never creates a debt
		}
		entry := &models.LedgerEntry{
			GroupID:     groupID,
			FromUserID:  userID,
			ToUserID:    payerID,
			Amount:      shares[userID],
			Kind:        models.EntryExpense,
			ReferenceID: referenceID + "/" + userID,
			Description: description,
		}
		stored, err := s.append(ctx, entry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, stored)
	}
	return entries, nil
}

// RecordSettlement appends one SETTLEMENT entry for a direct payment:
// fromUserID pays toUserID the amount. The entry is recorded from the
// receiver's perspective ({From: receiver, To: payer}) so the uniform
// "From owes To" fold reduces the payer's debt while amounts stay
// non-negative.
func (s *LedgerService) RecordSettlement(ctx context.Context, groupID, fromUserID, toUserID string, amount money.Money, referenceID, description string) (*models.LedgerEntry, error) {
	if groupID == "" || fromUserID == "" || toUserID == "" || referenceID == "" {
		return nil, fmt.Errorf("group, user and reference IDs are required")
	}
	entry := &models.LedgerEntry{
		GroupID:     groupID,
		FromUserID:  toUserID,
		ToUserID:    fromUserID,
		Amount:      amount,
		Kind:        models.EntrySettlement,
		ReferenceID: referenceID,
		Description: description,
	}
	return s.append(ctx, entry)
}

// RecordAdjustment appends a manual correction entry stating that fromUserID
// owes toUserID the amount. Corrections never mutate existing entries.
func (s *LedgerService) RecordAdjustment(ctx context.Context, groupID, fromUserID, toUserID string, amount money.Money, referenceID, description string) (*models.LedgerEntry, error) {
	if groupID == "" || fromUserID == "" || toUserID == "" || referenceID == "" {
		return nil, fmt.Errorf("group, user and reference IDs are required")
	}
	entry := &models.LedgerEntry{
		GroupID:     groupID,
		FromUserID:  fromUserID,
		ToUserID:    toUserID,
		Amount:      amount,
		Kind:        models.EntryAdjustment,
		ReferenceID: referenceID,
		Description: description,
	}
	return s.append(ctx, entry)
}

// append validates the entry, serializes on the group and hands the entry
// plus its canonical-pair delta to the store in one atomic step.
func (s *LedgerService) append(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	lock := s.locks.forGroup(entry.GroupID)
	lock.Lock()
	stored, created, err := s.store.AppendEntry(ctx, entry, models.DeltaFor(entry))
	lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if !created {
		if s.metrics != nil {
			s.metrics.DuplicateAppends.Inc()
		}
		slog.Debug("Duplicate append absorbed",
			"group_id", entry.GroupID,
			"reference_id", entry.ReferenceID,
			"kind", entry.Kind,
		)
		return stored, nil
	}

	if s.metrics != nil {
		s.metrics.EntriesAppended.WithLabelValues(string(stored.Kind)).Inc()
	}
	s.cache.InvalidateGroup(ctx, stored.GroupID)
	slog.Info("Ledger entry appended",
		"group_id", stored.GroupID,
		"entry_id", stored.ID,
		"kind", stored.Kind,
		"amount", stored.Amount.String(),
	)
	return stored, nil
}

func validateEntry(entry *models.LedgerEntry) error {
	if !entry.Kind.Valid() {
		return fmt.Errorf("unknown entry kind %q", entry.Kind)
	}
	if entry.FromUserID == entry.ToUserID {
		return fmt.Errorf("entry cannot relate user %s to themselves", entry.FromUserID)
	}
	if entry.Amount.IsNegative() {
		return fmt.Errorf("entry amount must be non-negative, got %s", entry.Amount)
	}
	if entry.Amount.Currency == "" {
		return fmt.Errorf("entry amount has no currency")
	}
	// Amounts are persisted as minor units; sub-unit precision would be lost.
	if !entry.Amount.Amount.Equal(entry.Amount.Round().Amount) {
		return fmt.Errorf("entry amount %s exceeds minor-unit precision", entry.Amount.Amount)
	}
	return nil
}

// Rebuild discards the group's materialized balances and recomputes them by
// replaying the full ledger in batches. Because every update is a commutative
// signed addition the result is independent of batch size.
func (s *LedgerService) Rebuild(ctx context.Context, groupID string) error {
	lock := s.locks.forGroup(groupID)
	lock.Lock()
	defer lock.Unlock()

	type pairKey struct {
		userA, userB, currency string
	}
	folded := make(map[pairKey]decimal.Decimal)

	cursor := storage.Cursor{}
	for {
		entries, next, err := s.store.ListEntriesSince(ctx, groupID, cursor, rebuildBatchSize)
		if err != nil {
			return fmt.Errorf("failed to replay group %s: %w", groupID, err)
		}
		for _, entry := range entries {
			delta := models.DeltaFor(entry)
			key := pairKey{delta.UserA, delta.UserB, delta.Currency}
			folded[key] = folded[key].Add(delta.Amount)
		}
		if len(entries) < rebuildBatchSize {
			break
		}
		cursor = next
	}

	balances := make([]*models.NetBalance, 0, len(folded))
	for key, amount := range folded {
		balances = append(balances, &models.NetBalance{
			GroupID: groupID,
			UserA:   key.userA,
			UserB:   key.userB,
			Amount:  money.New(amount, key.currency),
		})
	}

	if err := s.store.ReplaceGroupBalances(ctx, groupID, balances); err != nil {
		return fmt.Errorf("failed to store rebuilt balances: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RebuildsCompleted.Inc()
	}
	s.cache.InvalidateGroup(ctx, groupID)
	slog.Info("Rebuilt group balances", "group_id", groupID, "pairs", len(balances))
	return nil
}

// PruneEntries applies the retention policy to one group, deleting entries
// older than the horizon. Appends materialize atomically, so nothing
// unreflected can be lost; note that pruned history is gone for Rebuild.
func (s *LedgerService) PruneEntries(ctx context.Context, groupID string, horizon time.Time) (int64, error) {
	lock := s.locks.forGroup(groupID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := s.store.PruneEntriesBefore(ctx, groupID, horizon)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if s.metrics != nil {
			s.metrics.EntriesPruned.Add(float64(removed))
		}
		slog.Info("Pruned ledger entries", "group_id", groupID, "removed", removed, "horizon", horizon)
	}
	return removed, nil
}

// PruneAll applies the retention horizon to every group with ledger history.
func (s *LedgerService) PruneAll(ctx context.Context, horizon time.Time) error {
	groupIDs, err := s.store.ListGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups for pruning: %w", err)
	}
	for _, groupID := range groupIDs {
		if _, err := s.PruneEntries(ctx, groupID, horizon); err != nil {
			return err
		}
	}
	return nil
}
