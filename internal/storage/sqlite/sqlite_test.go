package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/splitterhq/balances/internal/models"
	"github.com/splitterhq/balances/internal/money"
	"github.com/splitterhq/balances/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntry(groupID, from, to, amount, referenceID string, kind models.EntryKind) *models.LedgerEntry {
	m, _ := money.FromString(amount, "USD")
	return &models.LedgerEntry{
		GroupID:     groupID,
		FromUserID:  from,
		ToUserID:    to,
		Amount:      m,
		Kind:        kind,
		ReferenceID: referenceID,
	}
}

func appendEntry(t *testing.T, store *SQLiteStore, entry *models.LedgerEntry) *models.LedgerEntry {
	t.Helper()
	stored, created, err := store.AppendEntry(context.Background(), entry, models.DeltaFor(entry))
	if err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	if !created {
		t.Fatalf("AppendEntry reported duplicate for fresh entry %s", entry.ReferenceID)
	}
	return stored
}

func TestAppendEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("generates ID and timestamp", func(t *testing.T) {
		entry := testEntry("g1", "bob", "alice", "10.00", "exp-1/bob", models.EntryExpense)
		stored := appendEntry(t, store, entry)

		if stored.ID == "" {
			t.Error("Expected entry ID to be generated")
		}
		if stored.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("applies balance delta", func(t *testing.T) {
		balances, err := store.GetGroupBalances(ctx, "g1")
		if err != nil {
			t.Fatalf("GetGroupBalances failed: %v", err)
		}
		if len(balances) != 1 {
			t.Fatalf("got %d balances, want 1", len(balances))
		}
		b := balances[0]
		if b.UserA != "alice" || b.UserB != "bob" {
			t.Errorf("pair = (%s, %s), want (alice, bob)", b.UserA, b.UserB)
		}
		// bob owes alice, alice sorts first, so the signed amount is positive.
		if b.Amount.String() != "10.00 USD" {
			t.Errorf("amount = %s, want 10.00 USD", b.Amount)
		}
	})

	t.Run("duplicate reference leaves everything untouched", func(t *testing.T) {
		dup := testEntry("g1", "bob", "alice", "99.99", "exp-1/bob", models.EntryExpense)
		stored, created, err := store.AppendEntry(ctx, dup, models.DeltaFor(dup))
		if err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
		if created {
			t.Error("Expected duplicate append to report created=false")
		}
		if stored.Amount.String() != "10.00 USD" {
			t.Errorf("stored entry amount = %s, want the original 10.00 USD", stored.Amount)
		}

		balances, err := store.GetGroupBalances(ctx, "g1")
		if err != nil {
			t.Fatalf("GetGroupBalances failed: %v", err)
		}
		if len(balances) != 1 || balances[0].Amount.String() != "10.00 USD" {
			t.Errorf("balance changed on duplicate append: %v", balances)
		}
	})

	t.Run("same reference different kind is distinct", func(t *testing.T) {
		adj := testEntry("g1", "bob", "alice", "1.00", "exp-1/bob", models.EntryAdjustment)
		appendEntry(t, store, adj)

		balances, err := store.GetGroupBalances(ctx, "g1")
		if err != nil {
			t.Fatalf("GetGroupBalances failed: %v", err)
		}
		if len(balances) != 1 || balances[0].Amount.String() != "11.00 USD" {
			t.Errorf("balance = %v, want single 11.00 USD row", balances)
		}
	})

	t.Run("opposite direction nets out", func(t *testing.T) {
		settle := testEntry("g1", "alice", "bob", "11.00", "set-1", models.EntrySettlement)
		appendEntry(t, store, settle)

		balances, err := store.GetGroupBalances(ctx, "g1")
		if err != nil {
			t.Fatalf("GetGroupBalances failed: %v", err)
		}
		if len(balances) != 1 || !balances[0].Amount.IsZero() {
			t.Errorf("balance = %v, want single zero row", balances)
		}
	})
}

func TestListEntriesSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	refs := []string{"e1", "e2", "e3", "e4", "e5"}
	for i, ref := range refs {
		entry := testEntry("g1", "bob", "alice", "1.00", ref, models.EntryExpense)
		entry.CreatedAt = base.Add(time.Duration(i) * time.Second)
		appendEntry(t, store, entry)
	}
	// Other groups must not leak into the page.
	appendEntry(t, store, testEntry("g2", "bob", "alice", "1.00", "other", models.EntryExpense))

	var got []string
	cursor := storage.Cursor{}
	for {
		entries, next, err := store.ListEntriesSince(ctx, "g1", cursor, 2)
		if err != nil {
			t.Fatalf("ListEntriesSince failed: %v", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			got = append(got, e.ReferenceID)
		}
		cursor = next
	}

	if len(got) != len(refs) {
		t.Fatalf("paged %d entries, want %d: %v", len(got), len(refs), got)
	}
	for i, ref := range refs {
		if got[i] != ref {
			t.Errorf("entry[%d] = %s, want %s", i, got[i], ref)
		}
	}
}

func TestGroupTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// alice fronted 30 for three people; bob and carol owe 10 each.
	appendEntry(t, store, testEntry("g1", "bob", "alice", "10.00", "exp-1/bob", models.EntryExpense))
	appendEntry(t, store, testEntry("g1", "carol", "alice", "10.00", "exp-1/carol", models.EntryExpense))
	// carol settles up; the settlement credits carol and debits alice.
	appendEntry(t, store, testEntry("g1", "alice", "carol", "10.00", "set-1", models.EntrySettlement))

	totals, err := store.GetGroupTotals(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroupTotals failed: %v", err)
	}

	want := map[string][2]string{
		"alice": {"20.00 USD", "10.00 USD"},
		"bob":   {"0.00 USD", "10.00 USD"},
		"carol": {"10.00 USD", "10.00 USD"},
	}
	if len(totals) != len(want) {
		t.Fatalf("got %d totals, want %d", len(totals), len(want))
	}
	for _, tot := range totals {
		w, ok := want[tot.UserID]
		if !ok {
			t.Errorf("unexpected user %s in totals", tot.UserID)
			continue
		}
		if tot.Paid.String() != w[0] || tot.Owed.String() != w[1] {
			t.Errorf("%s totals = paid %s owed %s, want paid %s owed %s",
				tot.UserID, tot.Paid, tot.Owed, w[0], w[1])
		}
	}

	expenses, err := store.GetGroupExpenseTotals(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroupExpenseTotals failed: %v", err)
	}
	if len(expenses) != 1 || expenses[0].String() != "20.00 USD" {
		t.Errorf("expense totals = %v, want [20.00 USD]", expenses)
	}
}

func TestGetBalanceViews(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	appendEntry(t, store, testEntry("g1", "bob", "alice", "10.00", "e1", models.EntryExpense))
	appendEntry(t, store, testEntry("g1", "carol", "alice", "5.00", "e2", models.EntryExpense))
	appendEntry(t, store, testEntry("g2", "alice", "dave", "7.00", "e3", models.EntryExpense))
	// Zeroed pair: must not show up in per-user views.
	appendEntry(t, store, testEntry("g1", "carol", "bob", "3.00", "e4", models.EntryExpense))
	appendEntry(t, store, testEntry("g1", "bob", "carol", "3.00", "s1", models.EntrySettlement))

	t.Run("balance between pair", func(t *testing.T) {
		balances, err := store.GetBalanceBetween(ctx, "g1", "alice", "bob")
		if err != nil {
			t.Fatalf("GetBalanceBetween failed: %v", err)
		}
		if len(balances) != 1 || balances[0].Amount.String() != "10.00 USD" {
			t.Errorf("balances = %v, want single 10.00 USD", balances)
		}
	})

	t.Run("user balances span groups and skip zeroes", func(t *testing.T) {
		balances, err := store.GetUserBalances(ctx, "alice")
		if err != nil {
			t.Fatalf("GetUserBalances failed: %v", err)
		}
		if len(balances) != 3 {
			t.Fatalf("got %d balances for alice, want 3: %v", len(balances), balances)
		}

		balances, err = store.GetUserBalances(ctx, "bob")
		if err != nil {
			t.Fatalf("GetUserBalances failed: %v", err)
		}
		// bob's pair with carol netted to zero, only the alice debt remains.
		if len(balances) != 1 || balances[0].UserB != "bob" {
			t.Errorf("bob balances = %v, want single (alice, bob) row", balances)
		}
	})

	t.Run("group has entries", func(t *testing.T) {
		has, err := store.GroupHasEntries(ctx, "g1")
		if err != nil {
			t.Fatalf("GroupHasEntries failed: %v", err)
		}
		if !has {
			t.Error("GroupHasEntries(g1) = false, want true")
		}
		has, err = store.GroupHasEntries(ctx, "nope")
		if err != nil {
			t.Fatalf("GroupHasEntries failed: %v", err)
		}
		if has {
			t.Error("GroupHasEntries(nope) = true, want false")
		}
	})

	t.Run("list group ids", func(t *testing.T) {
		ids, err := store.ListGroupIDs(ctx)
		if err != nil {
			t.Fatalf("ListGroupIDs failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "g1" || ids[1] != "g2" {
			t.Errorf("ListGroupIDs = %v, want [g1 g2]", ids)
		}
	})
}

func TestReplaceGroupBalances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	appendEntry(t, store, testEntry("g1", "bob", "alice", "10.00", "e1", models.EntryExpense))

	replacement := []*models.NetBalance{
		{GroupID: "g1", UserA: "alice", UserB: "carol", Amount: money.FromMinorUnits(250, "USD")},
		{GroupID: "g1", UserA: "alice", UserB: "bob", Amount: money.Zero("USD")},
	}
	if err := store.ReplaceGroupBalances(ctx, "g1", replacement); err != nil {
		t.Fatalf("ReplaceGroupBalances failed: %v", err)
	}

	balances, err := store.GetGroupBalances(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("got %d balances, want 1 (zero rows dropped)", len(balances))
	}
	if balances[0].UserB != "carol" || balances[0].Amount.String() != "2.50 USD" {
		t.Errorf("balance = %v, want (alice, carol) 2.50 USD", balances[0])
	}
}

func TestPruneEntriesBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := testEntry("g1", "bob", "alice", "10.00", "old", models.EntryExpense)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	appendEntry(t, store, old)
	appendEntry(t, store, testEntry("g1", "carol", "alice", "5.00", "recent", models.EntryExpense))

	removed, err := store.PruneEntriesBefore(ctx, "g1", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneEntriesBefore failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("pruned %d entries, want 1", removed)
	}

	entries, _, err := store.ListEntriesSince(ctx, "g1", storage.Cursor{}, 10)
	if err != nil {
		t.Fatalf("ListEntriesSince failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ReferenceID != "recent" {
		t.Errorf("remaining entries = %v, want only the recent one", entries)
	}

	// Pruning only drops history; materialized balances keep the folded total.
	balances, err := store.GetGroupBalances(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	total := money.Zero("USD")
	for _, b := range balances {
		var err error
		total, err = total.Add(b.Amount)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if total.String() != "15.00 USD" {
		t.Errorf("balance total after prune = %s, want 15.00 USD", total)
	}
}
