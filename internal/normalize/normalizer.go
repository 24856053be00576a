// Package normalize converts tokenized bank export rows into canonical batches.
//
// Every source shares the same flow: arity check, duplicate removal, field
// parsing, reordering to oldest-first, opening-balance synthesis and sort keys.
// Only the column layout and the date and amount encodings differ, and those
// live in one file per source.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankmerge/internal/core"
	"bankmerge/internal/ledger"
	"bankmerge/internal/log"
)

// RawRow is one tokenized line of an export file.
type RawRow struct {
	File   string
	Line   int
	Fields []string
}

// Result is the output of one successful normalization.
type Result struct {
	Batch       core.Batch
	Diagnostics []core.Diagnostic
}

// Normalizer turns the rows of one source into a batch. A returned error means
// the whole source is unusable; warnings travel in Result.Diagnostics.
type Normalizer interface {
	Source() core.SourceID
	Normalize(rows []RawRow) (Result, error)
}

// record is a parsed row before it becomes a core.Transaction.
type record struct {
	date        time.Time
	description string
	debit       decimal.Decimal
	credit      decimal.Decimal
	balance     decimal.Decimal
}

// layout describes a source's export format.
type layout struct {
	source      core.SourceID
	arity       int
	newestFirst bool
	parse       func(fields []string) (record, error)
}

func (l layout) normalize(rows []RawRow, logger *log.Logger) (Result, error) {
	logger = logger.With(log.FieldSource, l.source.String())

	for _, r := range rows {
		if len(r.Fields) != l.arity {
			return Result{}, fmt.Errorf("%s: %s line %d: %w: got %d, want %d",
				l.source, r.File, r.Line, core.ErrArity, len(r.Fields), l.arity)
		}
	}

	kept, diags := dedup(l.source, rows, logger)

	records := make([]record, len(kept))
	for i, r := range kept {
		rec, err := l.parse(r.Fields)
		if err != nil {
			return Result{}, fmt.Errorf("%s line %d: %w", r.File, r.Line, withSource(err, l.source))
		}
		records[i] = rec
	}

	if l.newestFirst {
		reverseWithinFiles(records, kept)
	}

	batch := core.Batch{Source: l.source, Transactions: build(l.source, records)}
	logger.Debug("Normalized source",
		log.FieldOperation, log.OpParse,
		log.FieldRows, len(rows),
		log.FieldEntries, batch.Len())

	return Result{Batch: batch, Diagnostics: diags}, nil
}

// dedup drops rows whose full field tuple was already seen. A repeat inside the
// same file is unexpected and reported, wherever the row first appeared; a
// repeat across files is the normal overlap of consecutive exports.
func dedup(src core.SourceID, rows []RawRow, logger *log.Logger) ([]RawRow, []core.Diagnostic) {
	seen := make(map[string]bool, len(rows))
	inFile := make(map[string]map[string]bool)
	kept := make([]RawRow, 0, len(rows))
	var diags []core.Diagnostic

	for _, r := range rows {
		key := strings.Join(r.Fields, "\x1f")
		fileKeys, ok := inFile[r.File]
		if !ok {
			fileKeys = make(map[string]bool)
			inFile[r.File] = fileKeys
		}

		if fileKeys[key] {
			d := core.NewDuplicateRecordWarning(src, r.File, r.Line, r.Fields)
			diags = append(diags, d)
			logger.Warn("Duplicate record within one export file dropped",
				log.FieldOperation, log.OpDedup,
				log.FieldFile, r.File,
				log.FieldLine, r.Line)
			continue
		}
		fileKeys[key] = true

		if seen[key] {
			logger.Debug("Overlapping record across export files dropped",
				log.FieldOperation, log.OpDedup,
				log.FieldFile, r.File,
				log.FieldLine, r.Line)
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	return kept, diags
}

// reverseWithinFiles flips each file's run of records; rows arrive grouped by
// file in file order.
func reverseWithinFiles(records []record, rows []RawRow) {
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && rows[i].File == rows[start].File {
			continue
		}
		for l, r := start, i-1; l < r; l, r = l+1, r-1 {
			records[l], records[r] = records[r], records[l]
		}
		start = i
	}
}

// build prepends the opening balance and assigns positions and sort keys.
func build(src core.SourceID, records []record) []core.Transaction {
	if len(records) == 0 {
		return nil
	}
	first := records[0]
	opening := first.balance.Sub(first.credit).Add(first.debit)

	txs := make([]core.Transaction, 0, len(records)+1)
	txs = append(txs, core.Transaction{
		Date:        first.date.AddDate(0, 0, -1),
		Description: core.OpeningBalanceLabel,
		Debit:       decimal.Zero,
		Credit:      opening,
		Balance:     opening,
		Source:      src,
	})
	for _, r := range records {
		txs = append(txs, core.Transaction{
			Date:        r.date,
			Description: r.description,
			Debit:       r.debit,
			Credit:      r.credit,
			Balance:     r.balance,
			Source:      src,
		})
	}
	for i := range txs {
		txs[i].Position = i
	}
	ledger.AssignSortKeys(txs)
	return txs
}

func withSource(err error, src core.SourceID) error {
	switch e := err.(type) {
	case *core.DateFormatError:
		e.Source = src
	case *core.NumericFormatError:
		e.Source = src
	}
	return err
}

// parseAmounts reads the debit, credit and balance cells in that order.
func parseAmounts(debit, credit, balance string) (d, c, b decimal.Decimal, err error) {
	if d, err = core.ParseAmount("debit", debit); err != nil {
		return
	}
	if c, err = core.ParseAmount("credit", credit); err != nil {
		return
	}
	b, err = core.ParseAmount("balance", balance)
	return
}

// Arity returns the field count of a source's rows, 0 for unknown sources.
func Arity(src core.SourceID) int {
	switch src {
	case core.SourceSMBC:
		return smbcArity
	case core.SourceMUFG:
		return mufgArity
	case core.SourceShinsei:
		return shinseiArity
	default:
		return 0
	}
}

// Registry selects the normalizer for a source.
type Registry struct {
	normalizers map[core.SourceID]Normalizer
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[core.SourceID]Normalizer, len(normalizers))}
	for _, n := range normalizers {
		r.normalizers[n.Source()] = n
	}
	return r
}

// DefaultRegistry wires the three supported banks.
func DefaultRegistry(eras core.EraCalendar, logger *log.Logger) *Registry {
	return NewRegistry(
		NewSMBC(eras, logger),
		NewMUFG(logger),
		NewShinsei(logger),
	)
}

func (r *Registry) Get(src core.SourceID) (Normalizer, bool) {
	n, ok := r.normalizers[src]
	return n, ok
}

// Sources lists registered sources in tie-break order.
func (r *Registry) Sources() []core.SourceID {
	out := make([]core.SourceID, 0, len(r.normalizers))
	for src := range r.normalizers {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func componentLogger(logger *log.Logger) *log.Logger {
	if logger == nil {
		logger = log.Discard()
	}
	return logger.WithComponent(log.ComponentNormalize)
}
