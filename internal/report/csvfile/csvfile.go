// Package csvfile writes run output as UTF-8 CSV files in one directory.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
	"bankmerge/internal/report"
)

const (
	LedgerFile      = "merged_ledger.csv"
	MonthlyFile     = "monthly_max_balance.csv"
	DiagnosticsFile = "diagnostics.csv"
)

type Writer struct {
	dir    string
	logger *log.Logger
}

var _ report.Sink = (*Writer)(nil)

// New returns a writer for dir, creating the directory if needed.
func New(dir string, logger *log.Logger) (*Writer, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger.WithComponent(log.ComponentReport)}, nil
}

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) WriteLedger(_ context.Context, entries []core.LedgerEntry) error {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = report.LedgerRow(e)
	}
	return w.write(LedgerFile, report.LedgerHeader, rows)
}

func (w *Writer) WriteMonthly(_ context.Context, months []core.MonthlyMax) error {
	rows := make([][]string, len(months))
	for i, m := range months {
		rows[i] = report.MonthlyRow(m)
	}
	return w.write(MonthlyFile, report.MonthlyHeader, rows)
}

func (w *Writer) WriteDiagnostics(_ context.Context, diags []core.Diagnostic) error {
	rows := make([][]string, len(diags))
	for i, d := range diags {
		rows[i] = report.DiagnosticRow(d)
	}
	return w.write(DiagnosticsFile, report.DiagnosticsHeader, rows)
}

// write replaces name atomically: rows go to a temp file that is renamed
// over the target once flushed.
func (w *Writer) write(name string, header []string, rows [][]string) error {
	target := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}

	w.logger.Info("Wrote report file",
		log.FieldOperation, log.OpWrite,
		log.FieldFile, target,
		log.FieldRows, len(rows))
	return nil
}
