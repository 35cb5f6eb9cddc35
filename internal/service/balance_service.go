package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/splitterhq/balances/internal/cache"
	"github.com/splitterhq/balances/internal/calculator"
	"github.com/splitterhq/balances/internal/currency"
	"github.com/splitterhq/balances/internal/metrics"
	"github.com/splitterhq/balances/internal/models"
	"github.com/splitterhq/balances/internal/money"
	"github.com/splitterhq/balances/internal/storage"
)

// defaultCurrency labels the zero balance returned for pairs with no history,
// matching the reference system's behavior.
const defaultCurrency = "USD"

// BalanceService owns the read path: balance queries, settlement plans and
// composed group summaries. Reads run concurrently with appends and observe
// per-pair pre- or post-update state; a settlement plan is advisory for the
// instant it was computed, not a stable snapshot to apply blindly.
type BalanceService struct {
	store          storage.Store
	converter      currency.Converter
	cache          *cache.SummaryCache
	metrics        *metrics.Metrics
	convertTimeout time.Duration
}

// NewBalanceService creates a BalanceService. converter, summaryCache and m
// may be nil; without a converter every summary is served unconverted.
func NewBalanceService(store storage.Store, converter currency.Converter, summaryCache *cache.SummaryCache, m *metrics.Metrics, convertTimeout time.Duration) *BalanceService {
	if convertTimeout <= 0 {
		convertTimeout = 2 * time.Second
	}
	return &BalanceService{
		store:          store,
		converter:      converter,
		cache:          summaryCache,
		metrics:        m,
		convertTimeout: convertTimeout,
	}
}

// GetGroupBalances returns every materialized balance of the group.
func (s *BalanceService) GetGroupBalances(ctx context.Context, groupID string) ([]*models.NetBalance, error) {
	return s.store.GetGroupBalances(ctx, groupID)
}

// GetActiveDebts returns only the group's non-zero balances.
func (s *BalanceService) GetActiveDebts(ctx context.Context, groupID string) ([]*models.NetBalance, error) {
	balances, err := s.store.GetGroupBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}
	active := balances[:0]
	for _, b := range balances {
		if !b.Amount.IsZero() {
			active = append(active, b)
		}
	}
	return active, nil
}

// GetBalanceBetween returns the per-currency balances between two users.
// A pair with no history yields a single zero-valued balance, not an error.
func (s *BalanceService) GetBalanceBetween(ctx context.Context, groupID, x, y string) ([]*models.NetBalance, error) {
	userA, userB := models.CanonicalPair(x, y)
	balances, err := s.store.GetBalanceBetween(ctx, groupID, userA, userB)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return []*models.NetBalance{{
			GroupID: groupID,
			UserA:   userA,
			UserB:   userB,
			Amount:  money.Zero(defaultCurrency),
		}}, nil
	}
	return balances, nil
}

// GetUserBalances aggregates the user's non-zero balances across all groups.
// A user who appears in no balance row maps to ErrUserNotFound.
func (s *BalanceService) GetUserBalances(ctx context.Context, userID string) (*models.UserSummary, error) {
	balances, err := s.store.GetUserBalances(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, userID)
	}

	owedTo := make(map[string]money.Money)   // currency -> others owe user
	userOwes := make(map[string]money.Money) // currency -> user owes others
	for _, b := range balances {
		debtor, creditor, amount := b.DebtorCreditor()
		switch userID {
		case creditor:
			owedTo[amount.Currency] = mustAdd(owedTo[amount.Currency], amount)
		case debtor:
			userOwes[amount.Currency] = mustAdd(userOwes[amount.Currency], amount)
		}
	}

	return &models.UserSummary{
		UserID:          userID,
		TotalOwedToUser: sortedMoney(owedTo),
		TotalUserOwes:   sortedMoney(userOwes),
		Balances:        balances,
	}, nil
}

// GetGroupSummary composes the group report: per-user paid/owed/net figures,
// total expenses, and the simplified settlement plan, optionally converted to
// a display currency at today's rates. When the rate lookup fails or times
// out the summary degrades to native currencies with Converted=false rather
// than failing; conversion is a display concern only.
func (s *BalanceService) GetGroupSummary(ctx context.Context, groupID, displayCurrency string) (*models.GroupSummary, error) {
	if cached, ok := s.cache.GetSummary(ctx, groupID, displayCurrency); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return cached, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	hasEntries, err := s.store.GroupHasEntries(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !hasEntries {
		return nil, fmt.Errorf("%w: %s", models.ErrGroupNotFound, groupID)
	}

	balances, err := s.GetActiveDebts(ctx, groupID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.GetGroupTotals(ctx, groupID)
	if err != nil {
		return nil, err
	}
	expenseTotals, err := s.store.GetGroupExpenseTotals(ctx, groupID)
	if err != nil {
		return nil, err
	}

	converted := false
	if displayCurrency != "" && s.converter != nil {
		cb, ct, ce, convErr := s.convertAll(ctx, displayCurrency, balances, totals, expenseTotals)
		if convErr == nil {
			balances, totals, expenseTotals = cb, ct, ce
			converted = true
		} else {
			if s.metrics != nil {
				s.metrics.RateLookupFailed.Inc()
			}
			slog.Warn("Currency conversion unavailable, serving unconverted summary",
				"group_id", groupID,
				"display_currency", displayCurrency,
				"error", convErr,
			)
		}
	}

	plan, err := s.simplifyPerCurrency(groupID, balances)
	if err != nil {
		return nil, err
	}

	summary := &models.GroupSummary{
		GroupID:         groupID,
		DisplayCurrency: displayCurrency,
		Converted:       converted,
		TotalExpenses:   expenseTotals,
		UserBalances:    buildUserBalances(totals),
		SimplifiedDebts: plan,
		GeneratedAt:     time.Now(),
	}
	s.cache.SetSummary(ctx, summary)
	return summary, nil
}

// convertAll converts balances, per-user totals and expense totals into the
// display currency at today's rate, under one bounded timeout. Any single
// failure abandons conversion as a whole so the summary stays coherent.
func (s *BalanceService) convertAll(ctx context.Context, displayCurrency string, balances []*models.NetBalance, totals []storage.UserTotals, expenseTotals []money.Money) ([]*models.NetBalance, []storage.UserTotals, []money.Money, error) {
	ctx, cancel := context.WithTimeout(ctx, s.convertTimeout)
	defer cancel()
	today := time.Now()

	convert := func(m money.Money) (money.Money, error) {
		// Signed amounts convert by magnitude to keep rate lookups positive.
		sign := m.Sign()
		out, err := s.converter.Convert(ctx, m.Abs(), displayCurrency, today)
		if err != nil {
			return money.Money{}, err
		}
		if sign < 0 {
			out = out.Neg()
		}
		return out, nil
	}

	// Converting the same pair in two currencies can make rows collide;
	// merge them after conversion.
	merged := make(map[[3]string]*models.NetBalance)
	var outBalances []*models.NetBalance
	for _, b := range balances {
		amount, err := convert(b.Amount)
		if err != nil {
			return nil, nil, nil, err
		}
		key := [3]string{b.GroupID, b.UserA, b.UserB}
		if existing, ok := merged[key]; ok {
			existing.Amount = mustAdd(existing.Amount, amount)
			continue
		}
		nb := &models.NetBalance{GroupID: b.GroupID, UserA: b.UserA, UserB: b.UserB, Amount: amount, UpdatedAt: b.UpdatedAt}
		merged[key] = nb
		outBalances = append(outBalances, nb)
	}

	mergedTotals := make(map[string]*storage.UserTotals)
	var outTotals []storage.UserTotals
	for _, t := range totals {
		paid, err := convert(t.Paid)
		if err != nil {
			return nil, nil, nil, err
		}
		owed, err := convert(t.Owed)
		if err != nil {
			return nil, nil, nil, err
		}
		if existing, ok := mergedTotals[t.UserID]; ok {
			existing.Paid = mustAdd(existing.Paid, paid)
			existing.Owed = mustAdd(existing.Owed, owed)
			continue
		}
		mergedTotals[t.UserID] = &storage.UserTotals{UserID: t.UserID, Currency: displayCurrency, Paid: paid, Owed: owed}
	}
	userIDs := make([]string, 0, len(mergedTotals))
	for id := range mergedTotals {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	for _, id := range userIDs {
		outTotals = append(outTotals, *mergedTotals[id])
	}

	expenseSum := money.Zero(displayCurrency)
	for _, e := range expenseTotals {
		c, err := convert(e)
		if err != nil {
			return nil, nil, nil, err
		}
		expenseSum = mustAdd(expenseSum, c)
	}
	var outExpenses []money.Money
	if len(expenseTotals) > 0 {
		outExpenses = []money.Money{expenseSum}
	}

	return outBalances, outTotals, outExpenses, nil
}

// simplifyPerCurrency groups balances by currency and runs the simplifier
// once per currency, concatenating the plans. An integrity violation aborts
// the computation and is logged with the full snapshot for diagnosis.
func (s *BalanceService) simplifyPerCurrency(groupID string, balances []*models.NetBalance) ([]models.SimplifiedDebt, error) {
	byCurrency := make(map[string][]*models.NetBalance)
	var currencies []string
	for _, b := range balances {
		c := b.Amount.Currency
		if _, ok := byCurrency[c]; !ok {
			currencies = append(currencies, c)
		}
		byCurrency[c] = append(byCurrency[c], b)
	}
	sort.Strings(currencies)

	start := time.Now()
	var plan []models.SimplifiedDebt
	for _, c := range currencies {
		debts, err := calculator.Simplify(groupID, byCurrency[c])
		if err != nil {
			var integrity *calculator.IntegrityError
			if errors.As(err, &integrity) {
				if s.metrics != nil {
					s.metrics.IntegrityErrors.Inc()
				}
				slog.Error("Balance integrity violation",
					"group_id", groupID,
					"currency", integrity.Currency,
					"residual", integrity.Residual.String(),
					"positions", integrity.Snapshot(),
				)
			}
			return nil, err
		}
		plan = append(plan, debts...)
	}
	if s.metrics != nil {
		s.metrics.SimplifyDuration.Observe(time.Since(start).Seconds())
	}
	return plan, nil
}

func buildUserBalances(totals []storage.UserTotals) []models.UserBalance {
	out := make([]models.UserBalance, 0, len(totals))
	for _, t := range totals {
		net, _ := t.Paid.Sub(t.Owed)
		out = append(out, models.UserBalance{
			UserID:   t.UserID,
			Currency: t.Currency,
			Paid:     t.Paid,
			Owed:     t.Owed,
			Net:      net,
		})
	}
	return out
}

// mustAdd adds two amounts the caller already knows share a currency.
func mustAdd(a, b money.Money) money.Money {
	if a.Currency == "" {
		return b
	}
	sum, err := a.Add(b)
	if err != nil {
		panic(err)
	}
	return sum
}

func sortedMoney(byCurrency map[string]money.Money) []money.Money {
	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	out := make([]money.Money, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, byCurrency[c])
	}
	return out
}
