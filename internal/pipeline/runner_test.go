package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recap/internal/dispatch"
	"recap/internal/logging"
	"recap/internal/progress"
	"recap/internal/record"
	"recap/internal/services"
	"recap/internal/task"
	"recap/internal/testsupport"
)

func newTestTask(t *testing.T, dataDir string) Task {
	t.Helper()
	id := task.NewID()
	ws, err := task.CreateWorkspace(dataDir, id)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	raw := testsupport.WriteFile(t, filepath.Join(ws.Raw, "meeting.wav"), "raw-bytes")
	return Task{ID: id, Title: "Weekly Sync", Workspace: ws, RawPath: raw}
}

// drainUntilFinal pops bus events for the task until the terminal one.
func drainUntilFinal(t *testing.T, bus *progress.Bus, taskID string) []progress.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []progress.Event
	for {
		evt, err := bus.Next(ctx, taskID)
		if err != nil {
			t.Fatalf("drain events: %v (got %d so far)", err, len(events))
		}
		events = append(events, evt)
		if evt.Terminal() {
			return events
		}
	}
}

func TestRunnerHappyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tsk := newTestTask(t, cfg.Paths.DataDir)

	converted := filepath.Join(tsk.Workspace.Converted, "meeting.wav")
	transcript := testsupport.WriteFile(t, filepath.Join(tsk.Workspace.Transcript, "transcription.json"), `[]`)
	summaryPath := testsupport.WriteFile(t, filepath.Join(tsk.Workspace.Summary, "summary.md"), "# Decisions\n- ship it\n")

	// The preprocess stage historically answers with a one-element array.
	preSrv, preRec := testsupport.NewStage(t, []map[string]any{{"preprocessed_file_path": converted}})
	diaSrv, diaRec := testsupport.NewStage(t, map[string]any{"segments": []map[string]any{
		{"start": 0.0, "end": 4.2, "speaker": "SPEAKER_00"},
	}})
	trSrv, trRec := testsupport.NewStage(t, map[string]any{"transcription_file_path": transcript})
	sumSrv, sumRec := testsupport.NewStage(t, map[string]any{"summary_path": summaryPath})

	cfg.Stages.PreprocessURL = preSrv.URL
	cfg.Stages.DiarizeURL = diaSrv.URL
	cfg.Stages.TranscribeURL = trSrv.URL
	cfg.Stages.SummarizeURL = sumSrv.URL

	bus := progress.NewBus()
	runner := NewRunner(cfg, dispatch.NewClient(logging.NewNop()), bus, nil, logging.NewNop())

	summary, err := runner.Run(context.Background(), tsk)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary != "# Decisions\n- ship it\n" {
		t.Fatalf("unexpected summary text: %q", summary)
	}

	for name, rec := range map[string]*testsupport.StageRecorder{
		"preprocess": preRec, "diarize": diaRec, "transcribe": trRec, "summarize": sumRec,
	} {
		if rec.Count() != 1 {
			t.Errorf("%s: expected exactly one call, got %d", name, rec.Count())
		}
	}

	prePayload := preRec.Requests()[0]
	if prePayload["input_path"] != tsk.RawPath {
		t.Errorf("preprocess input_path = %v, want %v", prePayload["input_path"], tsk.RawPath)
	}
	if prePayload["output_dir"] != tsk.Workspace.Converted {
		t.Errorf("preprocess output_dir = %v, want %v", prePayload["output_dir"], tsk.Workspace.Converted)
	}
	if prePayload["progress_min"] != 5.0 || prePayload["progress_max"] != 25.0 {
		t.Errorf("preprocess span = %v..%v, want 5..25", prePayload["progress_min"], prePayload["progress_max"])
	}
	if prePayload["task_id"] != tsk.ID {
		t.Errorf("preprocess task_id = %v, want %v", prePayload["task_id"], tsk.ID)
	}

	trPayload := trRec.Requests()[0]
	if trPayload["filename"] != converted {
		t.Errorf("transcribe filename = %v, want preprocess output %v", trPayload["filename"], converted)
	}

	events := drainUntilFinal(t, bus, tsk.ID)
	// started+completed per stage, then the final done frame.
	if len(events) != 9 {
		t.Fatalf("expected 9 events, got %d: %+v", len(events), events)
	}
	wantSteps := []string{
		StagePreprocess, StagePreprocess,
		StageDiarize, StageDiarize,
		StageTranscribe, StageTranscribe,
		StageSummarize, StageSummarize,
		"done",
	}
	for i, evt := range events {
		if evt.Step != wantSteps[i] {
			t.Errorf("event %d: step %q, want %q", i, evt.Step, wantSteps[i])
		}
		if evt.Service != "orchestrator" {
			t.Errorf("event %d: service %q", i, evt.Service)
		}
		if evt.TaskID != tsk.ID {
			t.Errorf("event %d: task id %q", i, evt.TaskID)
		}
	}
	final := events[len(events)-1]
	if !final.Final || final.Progress != 100 || final.Status != progress.StatusCompleted {
		t.Fatalf("unexpected final event: %+v", final)
	}
	if events[0].Progress != 5 || events[1].Progress != 25 {
		t.Errorf("preprocess events carry %v and %v, want span bounds 5 and 25",
			events[0].Progress, events[1].Progress)
	}
}

func TestRunnerAbortsOnStageFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tsk := newTestTask(t, cfg.Paths.DataDir)

	preSrv, _ := testsupport.NewStage(t, []map[string]any{{"preprocessed_file_path": tsk.RawPath}})
	diaSrv, _ := testsupport.NewStageWithStatus(t, map[string]any{"detail": "model load failed"}, 500)
	trSrv, trRec := testsupport.NewStage(t, map[string]any{"transcription_file_path": "/unused"})
	sumSrv, sumRec := testsupport.NewStage(t, map[string]any{"summary_path": "/unused"})

	cfg.Stages.PreprocessURL = preSrv.URL
	cfg.Stages.DiarizeURL = diaSrv.URL
	cfg.Stages.TranscribeURL = trSrv.URL
	cfg.Stages.SummarizeURL = sumSrv.URL

	bus := progress.NewBus()
	runner := NewRunner(cfg, dispatch.NewClient(logging.NewNop()), bus, nil, logging.NewNop())

	_, err := runner.Run(context.Background(), tsk)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if trRec.Count() != 0 || sumRec.Count() != 0 {
		t.Fatalf("later stages must not run after a failure: transcribe=%d summarize=%d",
			trRec.Count(), sumRec.Count())
	}

	events := drainUntilFinal(t, bus, tsk.ID)
	var errorEvents []progress.Event
	for _, evt := range events {
		if evt.Status == progress.StatusError {
			errorEvents = append(errorEvents, evt)
		}
	}
	if len(errorEvents) != 1 {
		t.Fatalf("expected exactly one error event, got %d: %+v", len(errorEvents), errorEvents)
	}
	failure := errorEvents[0]
	if !failure.Final {
		t.Error("error event must be terminal")
	}
	if failure.Step != StageDiarize {
		t.Errorf("error event step = %q, want %q", failure.Step, StageDiarize)
	}
	if !strings.Contains(failure.Message, StageDiarize) {
		t.Errorf("error message %q does not name the failed stage", failure.Message)
	}
}

func TestRunnerReportsMissingSummaryArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tsk := newTestTask(t, cfg.Paths.DataDir)

	transcript := testsupport.WriteFile(t, filepath.Join(tsk.Workspace.Transcript, "transcription.json"), `[]`)
	missing := filepath.Join(tsk.Workspace.Summary, "never-written.md")

	preSrv, _ := testsupport.NewStage(t, []map[string]any{{"preprocessed_file_path": tsk.RawPath}})
	diaSrv, _ := testsupport.NewStage(t, map[string]any{"segments": []map[string]any{}})
	trSrv, _ := testsupport.NewStage(t, map[string]any{"transcription_file_path": transcript})
	sumSrv, _ := testsupport.NewStage(t, map[string]any{"summary_path": missing})

	cfg.Stages.PreprocessURL = preSrv.URL
	cfg.Stages.DiarizeURL = diaSrv.URL
	cfg.Stages.TranscribeURL = trSrv.URL
	cfg.Stages.SummarizeURL = sumSrv.URL

	bus := progress.NewBus()
	runner := NewRunner(cfg, dispatch.NewClient(logging.NewNop()), bus, nil, logging.NewNop())

	_, err := runner.Run(context.Background(), tsk)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}

	events := drainUntilFinal(t, bus, tsk.ID)
	final := events[len(events)-1]
	if final.Status != progress.StatusError || !final.Final {
		t.Fatalf("unexpected final event: %+v", final)
	}
}

func TestRunnerRecordsCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tsk := newTestTask(t, cfg.Paths.DataDir)

	transcript := testsupport.WriteFile(t, filepath.Join(tsk.Workspace.Transcript, "transcription.json"), `[]`)
	summaryPath := testsupport.WriteFile(t, filepath.Join(tsk.Workspace.Summary, "summary.md"), "done")

	preSrv, _ := testsupport.NewStage(t, []map[string]any{{"preprocessed_file_path": tsk.RawPath}})
	diaSrv, _ := testsupport.NewStage(t, map[string]any{"segments": []map[string]any{}})
	trSrv, _ := testsupport.NewStage(t, map[string]any{"transcription_file_path": transcript})
	sumSrv, _ := testsupport.NewStage(t, map[string]any{"summary_path": summaryPath})

	cfg.Stages.PreprocessURL = preSrv.URL
	cfg.Stages.DiarizeURL = diaSrv.URL
	cfg.Stages.TranscribeURL = trSrv.URL
	cfg.Stages.SummarizeURL = sumSrv.URL

	store, err := record.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	bus := progress.NewBus()
	runner := NewRunner(cfg, dispatch.NewClient(logging.NewNop()), bus, store, logging.NewNop())

	if _, err := runner.Run(context.Background(), tsk); err != nil {
		t.Fatalf("run: %v", err)
	}

	ids, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(ids) != 1 || ids[0] != tsk.ID {
		t.Fatalf("expected completion row for %s, got %v", tsk.ID, ids)
	}
}

func TestSupervisorConvertsPanicToErrorEvent(t *testing.T) {
	bus := progress.NewBus()
	sup := NewSupervisor(logging.NewNop(), bus)

	sup.Launch("task-1", func(ctx context.Context) error {
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	evt, err := bus.Next(ctx, "task-1")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if evt.Status != progress.StatusError || !evt.Final {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if !strings.Contains(evt.Message, "boom") {
		t.Errorf("panic value missing from message %q", evt.Message)
	}
	if len(sup.Running()) != 0 {
		t.Errorf("task still tracked after exit: %v", sup.Running())
	}
}

func TestSupervisorTracksRunningTasks(t *testing.T) {
	bus := progress.NewBus()
	sup := NewSupervisor(logging.NewNop(), bus)

	release := make(chan struct{})
	started := make(chan struct{})
	sup.Launch("task-a", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	<-started
	running := sup.Running()
	if len(running) != 1 || running[0] != "task-a" {
		t.Fatalf("running = %v, want [task-a]", running)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
