// Package ledger orders, merges and reconciles normalized source batches.
package ledger

import (
	"time"

	"bankmerge/internal/core"
)

// AssignSortKeys sets SortKey on every transaction of txs, in place.
//
// Exports occasionally list a transaction dated before the one above it. Such a
// row keeps the key of the last row that advanced the date, so it stays right
// after it instead of pulling the rest of the batch around. The resulting keys
// are non-decreasing.
func AssignSortKeys(txs []core.Transaction) {
	var watermark time.Time
	for i := range txs {
		if txs[i].Date.Before(watermark) {
			txs[i].SortKey = watermark
			continue
		}
		watermark = txs[i].Date
		txs[i].SortKey = txs[i].Date
	}
}
