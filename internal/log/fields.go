package log

import "bankmerge/internal/core"

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldRunID           = "run_id"
	FieldSource          = "source"
	FieldFile            = "file"
	FieldLine            = "line"
	FieldDate            = "date"
	FieldDescription     = "description"
	FieldDebit           = "debit"
	FieldCredit          = "credit"
	FieldBalance         = "balance"
	FieldNetCashflow     = "net_cashflow"
	FieldCombinedBalance = "combined_balance"
	FieldRows            = "rows"
	FieldEntries         = "entries"
	FieldDuration        = "duration_ms"
	FieldError           = "error"
	FieldOperation       = "operation"
	FieldBackend         = "backend"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentIngest    = "ingest"
	ComponentNormalize = "normalize"
	ComponentLedger    = "ledger"
	ComponentPipeline  = "pipeline"
	ComponentReport    = "report"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentAMQP      = "amqp"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpRead      = "read"
	OpParse     = "parse"
	OpDedup     = "dedup"
	OpMerge     = "merge"
	OpReconcile = "reconcile"
	OpAggregate = "aggregate"
	OpWrite     = "write"
	OpPublish   = "publish"
	OpMigrate   = "migrate"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSource adds source field
func (f LogFields) WithSource(src core.SourceID) LogFields {
	f[FieldSource] = src.String()
	return f
}

// WithTransaction adds the fields identifying one canonical transaction
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldSource] = tx.Source.String()
	f[FieldDate] = tx.Date.Format("2006-01-02")
	f[FieldDescription] = tx.Description
	f[FieldDebit] = tx.Debit.String()
	f[FieldCredit] = tx.Credit.String()
	f[FieldBalance] = tx.Balance.String()
	return f
}

// WithEntry adds transaction fields plus the running reconciliation values
func (f LogFields) WithEntry(e core.LedgerEntry) LogFields {
	f.WithTransaction(e.Transaction)
	f[FieldNetCashflow] = e.NetCashflow.String()
	f[FieldCombinedBalance] = e.CombinedBalance.String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
