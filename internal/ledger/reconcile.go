package ledger

import (
	"github.com/shopspring/decimal"

	"bankmerge/internal/core"
)

// Reconciler tracks the running totals of a merged ledger.
//
// NetCashflow accumulates credit minus debit across every source. The combined
// balance is the sum of the latest balance each source reported. With complete
// exports the two are equal after every entry, because every batch starts with
// its opening balance as a credit.
type Reconciler struct {
	NetCashflow decimal.Decimal
	latest      map[core.SourceID]decimal.Decimal
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		NetCashflow: decimal.Zero,
		latest:      make(map[core.SourceID]decimal.Decimal),
	}
}

// Apply folds one transaction into the running totals. The returned diagnostic
// is non-nil when the totals disagree after tx.
func (r *Reconciler) Apply(tx core.Transaction) (core.LedgerEntry, *core.Diagnostic) {
	r.NetCashflow = r.NetCashflow.Add(tx.Net())
	r.latest[tx.Source] = tx.Balance

	entry := core.LedgerEntry{
		Transaction:     tx,
		NetCashflow:     r.NetCashflow,
		CombinedBalance: r.CombinedBalance(),
	}
	if !entry.NetCashflow.Equal(entry.CombinedBalance) {
		d := core.NewReconciliationMismatch(entry)
		return entry, &d
	}
	return entry, nil
}

// CombinedBalance sums the latest reported balance of every source seen so far.
func (r *Reconciler) CombinedBalance() decimal.Decimal {
	sum := decimal.Zero
	for _, src := range core.AllSources() {
		if b, ok := r.latest[src]; ok {
			sum = sum.Add(b)
		}
	}
	return sum
}

// LatestBalance returns the last balance reported by src.
func (r *Reconciler) LatestBalance(src core.SourceID) (decimal.Decimal, bool) {
	b, ok := r.latest[src]
	return b, ok
}

// Reconcile runs a fresh Reconciler over merged and returns the annotated
// ledger along with one diagnostic per mismatching entry.
func Reconcile(merged []core.Transaction) ([]core.LedgerEntry, []core.Diagnostic) {
	r := NewReconciler()
	entries := make([]core.LedgerEntry, 0, len(merged))
	var diags []core.Diagnostic
	for _, tx := range merged {
		entry, d := r.Apply(tx)
		entries = append(entries, entry)
		if d != nil {
			diags = append(diags, *d)
		}
	}
	return entries, diags
}
