// Package pipeline runs one full merge: normalize every source, merge the
// batches, reconcile the running balances and aggregate monthly maxima.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bankmerge/internal/core"
	"bankmerge/internal/ledger"
	"bankmerge/internal/log"
	"bankmerge/internal/normalize"
)

// Result is the output of one run. Ledger and Monthly cover the sources that
// normalized successfully; Failed holds the others.
type Result struct {
	Ledger      []core.LedgerEntry
	Monthly     []core.MonthlyMax
	Diagnostics []core.Diagnostic
	Failed      map[core.SourceID]error
	Sources     []core.SourceID
}

// AllFailed reports whether no source produced a batch.
func (r Result) AllFailed() bool {
	return len(r.Sources) == 0 && len(r.Failed) > 0
}

// Count returns the number of diagnostics of the given kind.
func (r Result) Count(kind core.DiagnosticKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

type Options struct {
	// Parallel runs the normalizers concurrently. They share no state, so the
	// result is identical either way.
	Parallel bool
}

type Pipeline struct {
	registry *normalize.Registry
	opts     Options
	logger   *log.Logger
}

func New(registry *normalize.Registry, opts Options, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Discard()
	}
	return &Pipeline{
		registry: registry,
		opts:     opts,
		logger:   logger.WithComponent(log.ComponentPipeline),
	}
}

// outcome is what one normalizer left behind.
type outcome struct {
	result normalize.Result
	err    error
}

// Run processes the given rows. Sources without rows are skipped. A source
// whose rows cannot be normalized is reported in Result.Failed and the rest of
// the run carries on. The only returned error is context cancellation.
func (p *Pipeline) Run(ctx context.Context, inputs map[core.SourceID][]normalize.RawRow) (Result, error) {
	start := time.Now()

	var sources []core.SourceID
	for _, src := range core.AllSources() {
		if _, ok := inputs[src]; ok {
			sources = append(sources, src)
		}
	}
	for src := range inputs {
		if !src.Valid() {
			return Result{}, fmt.Errorf("unknown source id %d", int(src))
		}
	}

	outcomes := make([]outcome, len(sources))
	normalizeOne := func(i int) {
		src := sources[i]
		n, ok := p.registry.Get(src)
		if !ok {
			outcomes[i].err = fmt.Errorf("no normalizer registered for %s", src)
			return
		}
		outcomes[i].result, outcomes[i].err = n.Normalize(inputs[src])
	}

	if p.opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range sources {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				normalizeOne(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	} else {
		for i := range sources {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			normalizeOne(i)
		}
	}

	res := Result{Failed: make(map[core.SourceID]error)}
	var batches []core.Batch
	for i, src := range sources {
		o := outcomes[i]
		if o.err != nil {
			res.Failed[src] = o.err
			res.Diagnostics = append(res.Diagnostics, core.NewSourceFailure(src, o.err))
			p.logger.Error("Source normalization failed, continuing without it",
				log.FieldSource, src.String(),
				log.FieldError, o.err)
			continue
		}
		res.Sources = append(res.Sources, src)
		res.Diagnostics = append(res.Diagnostics, o.result.Diagnostics...)
		batches = append(batches, o.result.Batch)
	}

	merged := ledger.Merge(batches...)
	entries, mismatches := ledger.Reconcile(merged)
	for _, d := range mismatches {
		p.logger.Warn("Net cash flow does not match combined balance",
			log.NewFields().WithOperation(log.OpReconcile).WithEntry(*d.Entry).ToSlice()...)
	}
	res.Ledger = entries
	res.Diagnostics = append(res.Diagnostics, mismatches...)
	res.Monthly = ledger.MonthlyMaxBalance(entries)

	p.logger.Info("Pipeline finished",
		log.FieldEntries, len(res.Ledger),
		"months", len(res.Monthly),
		"mismatches", len(mismatches),
		"failed", len(res.Failed),
		log.FieldDuration, time.Since(start).Milliseconds())

	return res, nil
}
