package ledger

import (
	"sort"

	"bankmerge/internal/core"
)

// MonthlyMaxBalance returns, for every calendar month of Date present in
// entries, the highest combined balance, ordered by month.
func MonthlyMaxBalance(entries []core.LedgerEntry) []core.MonthlyMax {
	byMonth := make(map[core.YearMonth]int)
	var out []core.MonthlyMax
	for _, e := range entries {
		ym := core.YearMonthOf(e.Date)
		i, ok := byMonth[ym]
		if !ok {
			byMonth[ym] = len(out)
			out = append(out, core.MonthlyMax{Month: ym, MaxCombinedBalance: e.CombinedBalance})
			continue
		}
		if e.CombinedBalance.GreaterThan(out[i].MaxCombinedBalance) {
			out[i].MaxCombinedBalance = e.CombinedBalance
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}
