// Package memory keeps run output in process, for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"bankmerge/internal/core"
	"bankmerge/internal/report"
)

type Store struct {
	mu      sync.Mutex
	ledger  []core.LedgerEntry
	monthly []core.MonthlyMax
	diags   []core.Diagnostic
	writes  int
}

var _ report.Sink = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) WriteLedger(_ context.Context, entries []core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append([]core.LedgerEntry(nil), entries...)
	s.writes++
	return nil
}

func (s *Store) WriteMonthly(_ context.Context, months []core.MonthlyMax) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly = append([]core.MonthlyMax(nil), months...)
	s.writes++
	return nil
}

func (s *Store) WriteDiagnostics(_ context.Context, diags []core.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append([]core.Diagnostic(nil), diags...)
	s.writes++
	return nil
}

// Snapshot returns copies of the last written output.
func (s *Store) Snapshot() report.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.Output{
		Ledger:      append([]core.LedgerEntry(nil), s.ledger...),
		Monthly:     append([]core.MonthlyMax(nil), s.monthly...),
		Diagnostics: append([]core.Diagnostic(nil), s.diags...),
	}
}

// Writes counts write calls, across all three kinds.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
