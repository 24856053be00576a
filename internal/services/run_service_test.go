package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"bankmerge/internal/amqp"
	"bankmerge/internal/core"
	"bankmerge/internal/ingest"
	"bankmerge/internal/normalize"
	"bankmerge/internal/pipeline"
	"bankmerge/internal/report/memory"
)

type fakePublisher struct {
	msgs []*amqp.RunCompletedMessage
	err  error
}

func (f *fakePublisher) PublishRunCompleted(_ context.Context, msg *amqp.RunCompletedMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func mufgInput() map[core.SourceID][]normalize.RawRow {
	return map[core.SourceID][]normalize.RawRow{
		core.SourceMUFG: {
			{File: "a.csv", Line: 2, Fields: []string{"2017/04/01", "振込", "", "", "1,200,000", "1,500,000", "", "", ""}},
			{File: "a.csv", Line: 3, Fields: []string{"2017/04/03", "カード", "", "12,345", "", "1,487,655", "", "", ""}},
		},
	}
}

func newPipeline() *pipeline.Pipeline {
	return pipeline.New(normalize.DefaultRegistry(core.DefaultEraCalendar(), nil), pipeline.Options{}, nil)
}

func TestRunService_Execute(t *testing.T) {
	sink := memory.New()
	pub := &fakePublisher{}
	svc := NewRunService(newPipeline(), sink, pub, nil)

	out, err := svc.Execute(context.Background(), mufgInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RunID == "" {
		t.Fatal("expected a run id")
	}

	snap := sink.Snapshot()
	if len(snap.Ledger) != 3 {
		t.Fatalf("expected 3 ledger entries in sink, got %d", len(snap.Ledger))
	}
	if len(snap.Monthly) != 2 {
		t.Fatalf("expected 2 months in sink, got %d", len(snap.Monthly))
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("expected one notification, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.RunID != out.RunID || msg.Entries != 3 || msg.Months != 2 || msg.Mismatches != 0 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if len(msg.Sources) != 1 || msg.Sources[0] != "mufg" {
		t.Errorf("unexpected sources: %v", msg.Sources)
	}
}

func TestRunService_PublishFailureDoesNotFailRun(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	svc := NewRunService(newPipeline(), memory.New(), pub, nil)

	if _, err := svc.Execute(context.Background(), mufgInput()); err != nil {
		t.Fatalf("publish errors must not fail the run: %v", err)
	}
}

func TestRunService_AllSourcesFailed(t *testing.T) {
	sink := memory.New()
	svc := NewRunService(newPipeline(), sink, nil, nil)

	inputs := map[core.SourceID][]normalize.RawRow{
		core.SourceSMBC: {{File: "s.csv", Line: 2, Fields: []string{"Z01.01.01", "", "", "x", "1"}}},
	}
	out, err := svc.Execute(context.Background(), inputs)
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}
	if _, ok := out.Result.Failed[core.SourceSMBC]; !ok {
		t.Error("smbc should be reported as failed")
	}
	if got := len(sink.Snapshot().Diagnostics); got != 1 {
		t.Errorf("diagnostics must still be written, got %d", got)
	}
}

func TestRunService_NoInput(t *testing.T) {
	sink := memory.New()
	pub := &fakePublisher{}
	svc := NewRunService(newPipeline(), sink, pub, nil)

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "smbc"), 0o755); err != nil {
		t.Fatal(err)
	}

	for name, run := range map[string]func() error{
		"empty input dir": func() error {
			_, err := svc.RunFromDir(context.Background(), ingest.NewReader(t.TempDir(), nil))
			return err
		},
		"source dir without files": func() error {
			_, err := svc.RunFromDir(context.Background(), ingest.NewReader(root, nil))
			return err
		},
		"no rows": func() error {
			_, err := svc.Execute(context.Background(), nil)
			return err
		},
	} {
		if err := run(); !errors.Is(err, ErrNoInput) {
			t.Errorf("%s: expected ErrNoInput, got %v", name, err)
		}
	}

	if sink.Writes() != 0 {
		t.Errorf("nothing should be written without input, got %d writes", sink.Writes())
	}
	if len(pub.msgs) != 0 {
		t.Errorf("nothing should be published without input, got %d messages", len(pub.msgs))
	}
}

func TestRunService_RunFromDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "mufg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "日付,摘要,摘要内容,支払い金額,預かり金額,差引残高,メモ,未資金化区分,入払区分\n" +
		"2017/04/01,振込,,,\"1,000\",\"1,000\",,,\n"
	encoded, err := japanese.ShiftJIS.NewEncoder().String(content)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte(encoded), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := memory.New()
	svc := NewRunService(newPipeline(), sink, nil, nil)
	out, err := svc.RunFromDir(context.Background(), ingest.NewReader(root, nil))
	if err != nil {
		t.Fatalf("RunFromDir: %v", err)
	}
	if len(out.Result.Ledger) != 2 {
		t.Fatalf("expected opening row plus one record, got %d", len(out.Result.Ledger))
	}
	if !out.Result.Ledger[0].Balance.IsZero() {
		t.Errorf("opening balance should be 0, got %s", out.Result.Ledger[0].Balance)
	}
}

func TestAddReadFailures(t *testing.T) {
	res := pipeline.Result{
		Sources:     []core.SourceID{core.SourceShinsei},
		Diagnostics: []core.Diagnostic{{Kind: core.KindDuplicateRecord, Source: core.SourceShinsei}},
	}
	addReadFailures(&res, map[core.SourceID]error{
		core.SourceMUFG: errors.New("permission denied"),
		core.SourceSMBC: errors.New("bad encoding"),
	})

	if len(res.Failed) != 2 {
		t.Fatalf("expected 2 failed sources, got %d", len(res.Failed))
	}
	if len(res.Diagnostics) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(res.Diagnostics))
	}
	if res.Diagnostics[0].Source != core.SourceSMBC || res.Diagnostics[1].Source != core.SourceMUFG {
		t.Errorf("read failures should lead in source order: %+v", res.Diagnostics)
	}
	if res.AllFailed() {
		t.Error("shinsei still produced a batch")
	}
}

func TestRunService_Close(t *testing.T) {
	svc := &RunService{}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close should not return error with nil components: %v", err)
	}
}
