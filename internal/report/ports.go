// Package report defines the output ports the merged ledger is written to and
// the row layouts shared by the tabular backends.
package report

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bankmerge/internal/core"
)

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		// WriteLedger replaces the stored ledger with entries, in order.
		WriteLedger(ctx context.Context, entries []core.LedgerEntry) error
	}

	MonthlyWriter interface {
		// WriteMonthly replaces the stored monthly summary, ordered by month.
		WriteMonthly(ctx context.Context, months []core.MonthlyMax) error
	}

	DiagnosticsWriter interface {
		WriteDiagnostics(ctx context.Context, diags []core.Diagnostic) error
	}

	// Sink accepts every output of a run.
	Sink interface {
		LedgerWriter
		MonthlyWriter
		DiagnosticsWriter
	}
)

// RunInfo identifies the run an output belongs to.
type RunInfo struct {
	ID        string
	StartedAt time.Time
	Sources   []core.SourceID
	Failed    []core.SourceID
}

// RunRecorder is implemented by sinks that keep a history of runs. BeginRun is
// called before any write of that run.
type RunRecorder interface {
	BeginRun(ctx context.Context, run RunInfo) error
}

// Output is one run's worth of writable data.
type Output struct {
	Ledger      []core.LedgerEntry
	Monthly     []core.MonthlyMax
	Diagnostics []core.Diagnostic
}

// Write sends out to the sink: ledger, then monthly summary, then diagnostics.
func Write(ctx context.Context, sink Sink, out Output) error {
	return WriteRun(ctx, sink, RunInfo{}, out)
}

// WriteRun is Write preceded by BeginRun for sinks that record runs.
func WriteRun(ctx context.Context, sink Sink, run RunInfo, out Output) error {
	if rr, ok := sink.(RunRecorder); ok {
		if err := rr.BeginRun(ctx, run); err != nil {
			return err
		}
	}
	if err := sink.WriteLedger(ctx, out.Ledger); err != nil {
		return err
	}
	if err := sink.WriteMonthly(ctx, out.Monthly); err != nil {
		return err
	}
	return sink.WriteDiagnostics(ctx, out.Diagnostics)
}

// Multi fans every write out to all sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

func (m Multi) BeginRun(ctx context.Context, run RunInfo) error {
	var errs []error
	for _, s := range m {
		if rr, ok := s.(RunRecorder); ok {
			errs = append(errs, rr.BeginRun(ctx, run))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) WriteLedger(ctx context.Context, entries []core.LedgerEntry) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteLedger(ctx, entries))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteMonthly(ctx context.Context, months []core.MonthlyMax) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteMonthly(ctx, months))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteDiagnostics(ctx context.Context, diags []core.Diagnostic) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteDiagnostics(ctx, diags))
	}
	return errors.Join(errs...)
}

// Column layouts of the tabular outputs.
var (
	LedgerHeader      = []string{"date", "description", "debit", "credit", "balance", "source", "net_cashflow", "combined_balance"}
	MonthlyHeader     = []string{"year_month", "max_combined_balance"}
	DiagnosticsHeader = []string{"kind", "source", "file", "line", "date", "expected", "actual", "message"}
)

const dateLayout = "2006-01-02"

func LedgerRow(e core.LedgerEntry) []string {
	return []string{
		e.Date.Format(dateLayout),
		e.Description,
		e.Debit.String(),
		e.Credit.String(),
		e.Balance.String(),
		e.Source.String(),
		e.NetCashflow.String(),
		e.CombinedBalance.String(),
	}
}

func MonthlyRow(m core.MonthlyMax) []string {
	return []string{m.Month.String(), m.MaxCombinedBalance.String()}
}

func DiagnosticRow(d core.Diagnostic) []string {
	row := []string{string(d.Kind), d.Source.String(), d.File, "", "", "", "", d.Message}
	if d.Line > 0 {
		row[3] = strconv.Itoa(d.Line)
	}
	if d.Entry != nil {
		row[4] = d.Entry.Date.Format(dateLayout)
		row[5] = d.Expected.String()
		row[6] = d.Actual.String()
	}
	return row
}
