package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	KindDuplicateRecord        DiagnosticKind = "duplicate_record"
	KindReconciliationMismatch DiagnosticKind = "reconciliation_mismatch"
	KindSourceFailed           DiagnosticKind = "source_failed"
)

type DiagnosticKind string

// Diagnostic is a condition reported alongside a successful run.
// Only KindSourceFailed means a source produced no output.
type Diagnostic struct {
	Kind    DiagnosticKind
	Source  SourceID
	Message string

	// Duplicate records
	File string
	Line int

	// Reconciliation mismatches
	Entry    *LedgerEntry
	Expected decimal.Decimal // combined balance
	Actual   decimal.Decimal // net cash flow
}

func NewDuplicateRecordWarning(src SourceID, file string, line int, fields []string) Diagnostic {
	return Diagnostic{
		Kind:    KindDuplicateRecord,
		Source:  src,
		File:    file,
		Line:    line,
		Message: fmt.Sprintf("duplicate record in the same file dropped: %v", fields),
	}
}

func NewReconciliationMismatch(entry LedgerEntry) Diagnostic {
	e := entry
	return Diagnostic{
		Kind:     KindReconciliationMismatch,
		Source:   entry.Source,
		Entry:    &e,
		Expected: entry.CombinedBalance,
		Actual:   entry.NetCashflow,
		Message: fmt.Sprintf("net cash flow %s does not match combined balance %s; the export period likely has a gap",
			entry.NetCashflow, entry.CombinedBalance),
	}
}

func NewSourceFailure(src SourceID, err error) Diagnostic {
	return Diagnostic{
		Kind:    KindSourceFailed,
		Source:  src,
		Message: err.Error(),
	}
}

// IsWarning reports whether the diagnostic leaves the source's output intact.
func (d Diagnostic) IsWarning() bool {
	return d.Kind != KindSourceFailed
}
