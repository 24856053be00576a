package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OpeningBalanceLabel is the description of the synthesized first row of every batch.
const OpeningBalanceLabel = "opening balance"

// Source identifiers. Declaration order is the merge tie-break order.
const (
	SourceSMBC SourceID = iota + 1
	SourceMUFG
	SourceShinsei
)

type (
	SourceID int

	// Transaction is one canonical ledger entry reported by one source.
	Transaction struct {
		Date        time.Time
		Description string
		Debit       decimal.Decimal
		Credit      decimal.Decimal
		Balance     decimal.Decimal // as reported by the source
		Source      SourceID
		SortKey     time.Time
		Position    int // index inside its Batch
	}

	// Batch holds every canonical transaction of one source in file order.
	Batch struct {
		Source       SourceID
		Transactions []Transaction
	}

	// LedgerEntry is a merged transaction with the running reconciliation values.
	LedgerEntry struct {
		Transaction
		NetCashflow     decimal.Decimal
		CombinedBalance decimal.Decimal
	}

	YearMonth struct {
		Year  int
		Month time.Month
	}

	// MonthlyMax is the highest combined balance seen in one calendar month.
	MonthlyMax struct {
		Month              YearMonth
		MaxCombinedBalance decimal.Decimal
	}
)

var sourceNames = map[SourceID]string{
	SourceSMBC:    "smbc",
	SourceMUFG:    "mufg",
	SourceShinsei: "shinsei",
}

// AllSources returns every known source in tie-break order.
func AllSources() []SourceID {
	return []SourceID{SourceSMBC, SourceMUFG, SourceShinsei}
}

func (s SourceID) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Valid reports whether s is one of the known sources.
func (s SourceID) Valid() bool {
	_, ok := sourceNames[s]
	return ok
}

// Less orders sources for merge tie-breaks.
func (s SourceID) Less(other SourceID) bool {
	return s < other
}

// ParseSourceID accepts the lower-case source name.
func ParseSourceID(name string) (SourceID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range sourceNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", name)
}

// NewDate returns midnight UTC of the given calendar day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IsOpening reports whether t is a synthesized opening-balance row.
func (t Transaction) IsOpening() bool {
	return t.Position == 0 && t.Description == OpeningBalanceLabel
}

// Net returns credit minus debit.
func (t Transaction) Net() decimal.Decimal {
	return t.Credit.Sub(t.Debit)
}

// YearMonthOf returns the calendar month containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Before orders months chronologically.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (b Batch) Len() int {
	return len(b.Transactions)
}
