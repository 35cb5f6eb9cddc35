// Package calculator holds the pure computation at the heart of the engine:
// reducing pairwise balances to net positions, simplifying them into a minimal
// payment plan, and splitting expense amounts exactly.
package calculator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/splitterhq/balances/internal/models"
	"github.com/splitterhq/balances/internal/money"
)

// IntegrityError signals a conservation-invariant violation: the net positions
// of a closed group did not sum to zero. It aborts the affected computation
// and must surface to operators with the snapshot attached; it is never
// silently patched.
type IntegrityError struct {
	GroupID   string
	Currency  string
	Residual  decimal.Decimal
	Positions map[string]decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("balance integrity violation in group %s (%s): net positions sum to %s, want 0",
		e.GroupID, e.Currency, e.Residual.String())
}

// Snapshot renders the offending positions for diagnostics, ordered by user ID.
func (e *IntegrityError) Snapshot() string {
	users := make([]string, 0, len(e.Positions))
	for u := range e.Positions {
		users = append(users, u)
	}
	sort.Strings(users)
	var b strings.Builder
	for i, u := range users {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", u, e.Positions[u].String())
	}
	return b.String()
}

// NetPositions collapses a group's pairwise balances into one signed position
// per user: the amount owed *to* that user. All balances must share one
// currency; cross-currency input must be converted first.
func NetPositions(balances []*models.NetBalance) (map[string]decimal.Decimal, string, error) {
	positions := make(map[string]decimal.Decimal)
	currency := ""
	for _, b := range balances {
		if currency == "" {
			currency = b.Amount.Currency
		} else if b.Amount.Currency != currency {
			return nil, "", fmt.Errorf("%w: %s vs %s", money.ErrCurrencyMismatch, currency, b.Amount.Currency)
		}
		// Positive amount: UserB owes UserA.
		positions[b.UserA] = positions[b.UserA].Add(b.Amount.Amount)
		positions[b.UserB] = positions[b.UserB].Sub(b.Amount.Amount)
	}
	return positions, currency, nil
}

type userAmount struct {
	userID string
	amount decimal.Decimal
}

// Simplify reduces one group's single-currency balances to an ordered payment
// plan that drives every net position to zero in at most k-1 transactions for
// k non-zero positions.
//
// Positions within one minor unit of zero count as settled. The remaining
// users are split into creditors and debtors, each sorted by descending
// magnitude with ties broken by ascending user ID, and matched greedily
// largest against largest; every match zeroes at least one participant. Any
// sub-minor-unit residue left on a participant is folded into their current
// payment rather than dropped, so the zero-sum invariant survives exactly.
//
// Empty input yields an empty plan. A position set that does not sum to zero
// within one minor unit is a data-integrity violation and returns
// *IntegrityError.
func Simplify(groupID string, balances []*models.NetBalance) ([]models.SimplifiedDebt, error) {
	if len(balances) == 0 {
		return nil, nil
	}

	positions, currency, err := NetPositions(balances)
	if err != nil {
		return nil, err
	}

	epsilon := money.Zero(currency).Epsilon()

	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(p)
	}
	if sum.Abs().GreaterThanOrEqual(epsilon) {
		return nil, &IntegrityError{
			GroupID:   groupID,
			Currency:  currency,
			Residual:  sum,
			Positions: positions,
		}
	}

	var creditors, debtors []userAmount
	for userID, p := range positions {
		switch {
		case p.Abs().LessThan(epsilon):
			// settled
		case p.Sign() > 0:
			creditors = append(creditors, userAmount{userID, p})
		default:
			debtors = append(debtors, userAmount{userID, p.Neg()})
		}
	}

	byMagnitudeThenID := func(s []userAmount) func(i, j int) bool {
		return func(i, j int) bool {
			if c := s[i].amount.Cmp(s[j].amount); c != 0 {
				return c > 0
			}
			return s[i].userID < s[j].userID
		}
	}
	sort.Slice(creditors, byMagnitudeThenID(creditors))
	sort.Slice(debtors, byMagnitudeThenID(debtors))

	var plan []models.SimplifiedDebt
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		transfer := decimal.Min(debtor.amount, creditor.amount)

		// Fold sub-unit residue into this payment instead of dropping it:
		// since both slices are sorted big-first, this pair is the first
		// unresolved one, which keeps residual assignment deterministic.
		if rest := debtor.amount.Sub(transfer); rest.Sign() > 0 && rest.LessThan(epsilon) {
			transfer = debtor.amount
		} else if rest := creditor.amount.Sub(transfer); rest.Sign() > 0 && rest.LessThan(epsilon) {
			transfer = creditor.amount
		}

		if transfer.Sign() > 0 {
			plan = append(plan, models.SimplifiedDebt{
				FromUserID: debtor.userID,
				ToUserID:   creditor.userID,
				Amount:     money.New(transfer, currency),
			})
		}

		debtor.amount = debtor.amount.Sub(transfer)
		creditor.amount = creditor.amount.Sub(transfer)

		if debtor.amount.LessThan(epsilon) {
			i++
		}
		if creditor.amount.LessThan(epsilon) {
			j++
		}
	}

	return plan, nil
}
