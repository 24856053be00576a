package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"bankmerge/internal/amqp"
	"bankmerge/internal/core"
	"bankmerge/internal/ingest"
	"bankmerge/internal/log"
	"bankmerge/internal/normalize"
	"bankmerge/internal/pipeline"
	"bankmerge/internal/report"
)

// ErrAllSourcesFailed is returned when no source produced a batch. The
// outcome still carries the diagnostics explaining why.
var ErrAllSourcesFailed = errors.New("every source failed")

// ErrNoInput is returned when no source had any rows to merge. Nothing is
// written or published.
var ErrNoInput = errors.New("no input rows for any source")

// Publisher announces finished runs.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error
}

// Outcome is what one executed run produced.
type Outcome struct {
	RunID     string
	StartedAt time.Time
	Result    pipeline.Result
}

// RunService orchestrates one run: pipeline, sinks, then notification.
type RunService struct {
	pipeline  *pipeline.Pipeline
	sink      report.Sink
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
}

// NewRunService wires a run. sink and publisher may be nil.
func NewRunService(p *pipeline.Pipeline, sink report.Sink, publisher Publisher, logger *log.Logger) *RunService {
	if logger == nil {
		logger = log.Discard()
	}
	return &RunService{
		pipeline:  p,
		sink:      sink,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentPipeline),
		now:       time.Now,
	}
}

// RunFromDir reads every source under the reader's root and executes a run.
// A source whose files cannot be read counts as failed.
func (s *RunService) RunFromDir(ctx context.Context, reader *ingest.Reader) (Outcome, error) {
	rows, readErrs, err := reader.ReadAll()
	if err != nil {
		return Outcome{}, fmt.Errorf("read input: %w", err)
	}
	return s.execute(ctx, rows, readErrs)
}

// Execute runs the pipeline on already tokenized rows, writes the output to
// the sink and publishes a notification. Write errors are returned; publish
// errors are only logged.
func (s *RunService) Execute(ctx context.Context, inputs map[core.SourceID][]normalize.RawRow) (Outcome, error) {
	return s.execute(ctx, inputs, nil)
}

func (s *RunService) execute(ctx context.Context, inputs map[core.SourceID][]normalize.RawRow, readErrs map[core.SourceID]error) (Outcome, error) {
	out := Outcome{RunID: uuid.NewString(), StartedAt: s.now()}
	logger := s.logger.With(log.FieldRunID, out.RunID)

	if len(readErrs) == 0 && countRows(inputs) == 0 {
		logger.WarnContext(ctx, "No input rows found for any source, nothing to merge",
			"sources", len(inputs))
		return out, ErrNoInput
	}

	res, err := s.pipeline.Run(ctx, inputs)
	if err != nil {
		return out, fmt.Errorf("run pipeline: %w", err)
	}
	addReadFailures(&res, readErrs)
	out.Result = res

	if s.sink != nil {
		run := report.RunInfo{
			ID:        out.RunID,
			StartedAt: out.StartedAt,
			Sources:   res.Sources,
			Failed:    failedSources(res),
		}
		data := report.Output{Ledger: res.Ledger, Monthly: res.Monthly, Diagnostics: res.Diagnostics}
		if err := report.WriteRun(ctx, s.sink, run, data); err != nil {
			return out, fmt.Errorf("write output: %w", err)
		}
	}

	if err := s.publish(ctx, out); err != nil {
		logger.ErrorContext(ctx, "Failed to publish run completed message", log.FieldError, err)
	}

	if res.AllFailed() {
		return out, ErrAllSourcesFailed
	}
	return out, nil
}

func (s *RunService) publish(ctx context.Context, out Outcome) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping run notification")
		return nil
	}
	res := out.Result
	msg := &amqp.RunCompletedMessage{
		RunID:      out.RunID,
		Sources:    names(res.Sources),
		Failed:     names(failedSources(res)),
		Entries:    len(res.Ledger),
		Mismatches: res.Count(core.KindReconciliationMismatch),
		Duplicates: res.Count(core.KindDuplicateRecord),
		Months:     len(res.Monthly),
		Timestamp:  s.now(),
	}
	return s.publisher.PublishRunCompleted(ctx, msg)
}

// Close releases the publisher.
func (s *RunService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
	}
	return nil
}

// addReadFailures records sources that failed before normalization. Their
// diagnostics go first, in source order.
func addReadFailures(res *pipeline.Result, readErrs map[core.SourceID]error) {
	if len(readErrs) == 0 {
		return
	}
	if res.Failed == nil {
		res.Failed = make(map[core.SourceID]error)
	}
	var diags []core.Diagnostic
	for _, src := range core.AllSources() {
		err, ok := readErrs[src]
		if !ok {
			continue
		}
		res.Failed[src] = err
		diags = append(diags, core.NewSourceFailure(src, err))
	}
	res.Diagnostics = append(diags, res.Diagnostics...)
}

func failedSources(res pipeline.Result) []core.SourceID {
	var out []core.SourceID
	for _, src := range core.AllSources() {
		if _, ok := res.Failed[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

func names(srcs []core.SourceID) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.String()
	}
	return out
}

func countRows(inputs map[core.SourceID][]normalize.RawRow) int {
	n := 0
	for _, rows := range inputs {
		n += len(rows)
	}
	return n
}
