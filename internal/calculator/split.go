package calculator

import (
	"fmt"
	"sort"

	"github.com/splitterhq/balances/internal/money"
)

// EvenSplit divides a total equally among the participants and returns each
// person's share. Shares are exact minor-unit amounts that sum back to the
// total: the per-person amount is truncated and the remainder is assigned one
// minor unit at a time to the lexicographically first participants, so the
// same input always yields the same shares.
func EvenSplit(total money.Money, participants []string) (map[string]money.Money, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("cannot split negative amount %s", total)
	}

	ordered := make([]string, 0, len(participants))
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return nil, fmt.Errorf("duplicate participant %q", p)
		}
		seen[p] = true
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	parts, err := total.Split(len(ordered))
	if err != nil {
		return nil, err
	}

	shares := make(map[string]money.Money, len(ordered))
	for i, p := range ordered {
		shares[p] = parts[i]
	}
	return shares, nil
}

// SumShares adds up per-user share amounts, enforcing a single currency.
func SumShares(shares map[string]money.Money) (money.Money, error) {
	var total money.Money
	first := true
	for _, userID := range sortedKeys(shares) {
		s := shares[userID]
		if first {
			total = s
			first = false
			continue
		}
		var err error
		total, err = total.Add(s)
		if err != nil {
			return money.Money{}, fmt.Errorf("share for %s: %w", userID, err)
		}
	}
	return total, nil
}

func sortedKeys(m map[string]money.Money) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
