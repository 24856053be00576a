package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bankmerge/internal/core"
	"bankmerge/internal/report"
)

func TestStoreKeepsLastWrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	month := core.MonthlyMax{Month: core.YearMonth{Year: 2024, Month: time.January}, MaxCombinedBalance: decimal.NewFromInt(150)}

	if err := report.Write(ctx, s, report.Output{Monthly: []core.MonthlyMax{month, month}}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := report.Write(ctx, s, report.Output{Monthly: []core.MonthlyMax{month}}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Monthly) != 1 {
		t.Fatalf("expected the second write to replace the first, got %d months", len(snap.Monthly))
	}
	if s.Writes() != 6 {
		t.Fatalf("expected 6 write calls, got %d", s.Writes())
	}

	snap.Monthly[0].MaxCombinedBalance = decimal.Zero
	if !s.Snapshot().Monthly[0].MaxCombinedBalance.Equal(decimal.NewFromInt(150)) {
		t.Fatal("snapshot must not alias store state")
	}
}

type failingSink struct{ *Store }

func (failingSink) WriteLedger(context.Context, []core.LedgerEntry) error {
	return errors.New("disk full")
}

func TestMultiWritesEverySink(t *testing.T) {
	ok := New()
	bad := failingSink{New()}
	multi := report.Multi{bad, ok}

	err := multi.WriteLedger(context.Background(), []core.LedgerEntry{{}})
	if err == nil {
		t.Fatal("expected the failing sink's error")
	}
	if len(ok.Snapshot().Ledger) != 1 {
		t.Fatal("healthy sink must still receive the write")
	}
	if err := multi.WriteMonthly(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
