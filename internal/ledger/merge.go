package ledger

import (
	"bankmerge/internal/core"
)

// Merge interleaves batches into one sequence ordered by
// (SortKey, Source, Position). Each batch must already be ordered by SortKey
// with positions increasing, which the normalizers guarantee.
//
// Every transaction of every batch appears exactly once in the result.
func Merge(batches ...core.Batch) []core.Transaction {
	total := 0
	for _, b := range batches {
		total += b.Len()
	}
	out := make([]core.Transaction, 0, total)
	cursors := make([]int, len(batches))

	for len(out) < total {
		best := -1
		for i, b := range batches {
			if cursors[i] >= b.Len() {
				continue
			}
			if best == -1 || before(b.Transactions[cursors[i]], batches[best].Transactions[cursors[best]]) {
				best = i
			}
		}
		out = append(out, batches[best].Transactions[cursors[best]])
		cursors[best]++
	}
	return out
}

func before(a, b core.Transaction) bool {
	if !a.SortKey.Equal(b.SortKey) {
		return a.SortKey.Before(b.SortKey)
	}
	if a.Source != b.Source {
		return a.Source.Less(b.Source)
	}
	return a.Position < b.Position
}
