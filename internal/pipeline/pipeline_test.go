package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankmerge/internal/core"
	"bankmerge/internal/normalize"
)

func raw(file string, fields ...[]string) []normalize.RawRow {
	out := make([]normalize.RawRow, len(fields))
	for i, f := range fields {
		out[i] = normalize.RawRow{File: file, Line: i + 2, Fields: f}
	}
	return out
}

func smbcRows() []normalize.RawRow {
	return raw("smbc/2017.csv",
		[]string{"H29.04.03", "3000", "", "ATM", "97000"},
		[]string{"H29.04.25", "", "250000", "給与", "347000"},
		[]string{"H29.05.10", "47000", "", "家賃", "300000"},
	)
}

func mufgRows() []normalize.RawRow {
	return raw("mufg/2017.csv",
		[]string{"2017/04/01", "振込", "", "", "1,200,000", "1,500,000", "", "", ""},
		[]string{"2017/04/03", "カード", "", "12,345", "", "1,487,655", "", "", ""},
		[]string{"2017/05/02", "振込", "", "", "10,000", "1,497,655", "", "", ""},
	)
}

func shinseiRows() []normalize.RawRow {
	return raw("shinsei/2017.csv",
		[]string{"2017/04/20", "003", "振込", "", "5000", "55000"},
		[]string{"2017/04/10", "002", "ATM", "10000", "", "50000"},
		[]string{"2017/04/01", "001", "利息", "", "12", "60000"},
	)
}

func allInputs() map[core.SourceID][]normalize.RawRow {
	return map[core.SourceID][]normalize.RawRow{
		core.SourceSMBC:    smbcRows(),
		core.SourceMUFG:    mufgRows(),
		core.SourceShinsei: shinseiRows(),
	}
}

func newPipeline(parallel bool) *Pipeline {
	return New(normalize.DefaultRegistry(core.DefaultEraCalendar(), nil), Options{Parallel: parallel}, nil)
}

func render(res Result) string {
	var b strings.Builder
	for _, e := range res.Ledger {
		fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s|%s|%s\n",
			e.Date.Format("2006-01-02"), e.Description, e.Debit, e.Credit, e.Balance,
			e.Source, e.NetCashflow, e.CombinedBalance)
	}
	for _, m := range res.Monthly {
		fmt.Fprintf(&b, "%s|%s\n", m.Month, m.MaxCombinedBalance)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(&b, "%s|%s|%s\n", d.Kind, d.Source, d.Message)
	}
	return b.String()
}

func TestRun_ThreeSourcesReconcile(t *testing.T) {
	res, err := newPipeline(true).Run(context.Background(), allInputs())
	require.NoError(t, err)

	assert.Empty(t, res.Failed)
	assert.Equal(t, core.AllSources(), res.Sources)
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Ledger, 12, "three records plus an opening row per source")

	for i, e := range res.Ledger {
		assert.True(t, e.NetCashflow.Equal(e.CombinedBalance), "entry %d: net %s, combined %s", i, e.NetCashflow, e.CombinedBalance)
		if i > 0 {
			assert.False(t, e.SortKey.Before(res.Ledger[i-1].SortKey), "entry %d out of order", i)
		}
	}

	// MUFG and Shinsei openings share 2017-03-31; MUFG wins the tie.
	assert.Equal(t, core.SourceMUFG, res.Ledger[0].Source)
	assert.Equal(t, core.SourceShinsei, res.Ledger[1].Source)
	assert.True(t, res.Ledger[0].IsOpening())
	assert.True(t, res.Ledger[1].IsOpening())

	last := res.Ledger[len(res.Ledger)-1]
	assert.True(t, last.CombinedBalance.Equal(decimal.NewFromInt(1852655)), "got %s", last.CombinedBalance)

	require.Len(t, res.Monthly, 3)
	assert.Equal(t, "2017-03", res.Monthly[0].Month.String())
	assert.Equal(t, "2017-04", res.Monthly[1].Month.String())
	assert.Equal(t, "2017-05", res.Monthly[2].Month.String())
}

func TestRun_Idempotent(t *testing.T) {
	first, err := newPipeline(true).Run(context.Background(), allInputs())
	require.NoError(t, err)
	second, err := newPipeline(true).Run(context.Background(), allInputs())
	require.NoError(t, err)
	sequential, err := newPipeline(false).Run(context.Background(), allInputs())
	require.NoError(t, err)

	assert.Equal(t, render(first), render(second))
	assert.Equal(t, render(first), render(sequential))
}

func TestRun_FailedSourceDoesNotStopOthers(t *testing.T) {
	inputs := allInputs()
	inputs[core.SourceSMBC] = append(smbcRows(), raw("smbc/2018.csv",
		[]string{"X30.01.01", "", "", "?", "300000"},
	)...)

	res, err := newPipeline(true).Run(context.Background(), inputs)
	require.NoError(t, err)

	require.Contains(t, res.Failed, core.SourceSMBC)
	var dfe *core.DateFormatError
	assert.True(t, errors.As(res.Failed[core.SourceSMBC], &dfe))
	assert.Equal(t, []core.SourceID{core.SourceMUFG, core.SourceShinsei}, res.Sources)
	assert.False(t, res.AllFailed())

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, core.KindSourceFailed, res.Diagnostics[0].Kind)
	assert.Equal(t, core.SourceSMBC, res.Diagnostics[0].Source)

	assert.Len(t, res.Ledger, 8)
	for _, e := range res.Ledger {
		assert.NotEqual(t, core.SourceSMBC, e.Source)
		assert.True(t, e.NetCashflow.Equal(e.CombinedBalance))
	}
}

func TestRun_AllSourcesFailed(t *testing.T) {
	res, err := newPipeline(false).Run(context.Background(), map[core.SourceID][]normalize.RawRow{
		core.SourceMUFG: raw("mufg/x.csv", []string{"2017/04/01", "x", "", "", "abc", "1", "", "", ""}),
	})
	require.NoError(t, err)
	assert.True(t, res.AllFailed())
	assert.Empty(t, res.Ledger)
	assert.Empty(t, res.Monthly)
	assert.Equal(t, 1, res.Count(core.KindSourceFailed))
}

func TestRun_GapProducesMismatch(t *testing.T) {
	inputs := allInputs()
	gapped := mufgRows()
	inputs[core.SourceMUFG] = append(gapped[:1:1], gapped[2:]...)

	res, err := newPipeline(true).Run(context.Background(), inputs)
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.Count(core.KindReconciliationMismatch), 1)

	removed := core.NewDate(2017, time.April, 3)
	for _, d := range res.Diagnostics {
		if d.Kind != core.KindReconciliationMismatch {
			continue
		}
		require.NotNil(t, d.Entry)
		assert.False(t, d.Entry.Date.Before(removed), "mismatch reported before the gap at %s", d.Entry.Date)
		assert.False(t, d.Expected.Equal(d.Actual))
	}
}

func TestRun_DuplicateWarningsSurface(t *testing.T) {
	inputs := allInputs()
	dup := shinseiRows()
	dup = append(dup, normalize.RawRow{File: dup[0].File, Line: 5, Fields: append([]string(nil), dup[0].Fields...)})
	inputs[core.SourceShinsei] = dup

	res, err := newPipeline(true).Run(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(core.KindDuplicateRecord))
	assert.Equal(t, 0, res.Count(core.KindReconciliationMismatch))
	assert.Len(t, res.Ledger, 12)
}

func TestRun_MissingNormalizer(t *testing.T) {
	p := New(normalize.NewRegistry(normalize.NewMUFG(nil)), Options{}, nil)
	res, err := p.Run(context.Background(), map[core.SourceID][]normalize.RawRow{
		core.SourceMUFG: mufgRows(),
		core.SourceSMBC: smbcRows(),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Failed, core.SourceSMBC)
	assert.Equal(t, []core.SourceID{core.SourceMUFG}, res.Sources)
}

func TestRun_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPipeline(false).Run(ctx, allInputs())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = newPipeline(false).Run(context.Background(), map[core.SourceID][]normalize.RawRow{
		core.SourceID(9): nil,
	})
	assert.Error(t, err)
}
