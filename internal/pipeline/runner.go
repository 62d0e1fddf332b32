package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"recap/internal/config"
	"recap/internal/dispatch"
	"recap/internal/logging"
	"recap/internal/progress"
	"recap/internal/record"
	"recap/internal/services"
	"recap/internal/task"
)

// Task is one end-to-end processing request handed to the runner after its
// upload has been ingested.
type Task struct {
	ID        string
	Title     string
	Workspace task.Workspace
	RawPath   string
}

// Runner sequences the four stages for one task. Stage failures abort the
// remaining sequence; artifacts already written are left in place for
// post-mortem inspection.
type Runner struct {
	cfg    *config.Config
	client *dispatch.Client
	bus    *progress.Bus
	store  *record.Store
	logger *slog.Logger
}

// NewRunner constructs a pipeline runner. store may be nil to disable
// completion recording.
func NewRunner(cfg *config.Config, client *dispatch.Client, bus *progress.Bus, store *record.Store, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		client: client,
		bus:    bus,
		store:  store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes preprocess, diarize, transcribe, and summarize in order and
// returns the summary text. The first failing stage aborts the sequence
// after publishing exactly one error event.
func (r *Runner) Run(ctx context.Context, t Task) (string, error) {
	ctx = services.WithTaskID(ctx, t.ID)
	logger := logging.WithTask(r.logger, t.ID)
	spans := Spans()
	start := time.Now()

	logger.Info("pipeline started",
		logging.String("title", t.Title),
		logging.String("raw_path", t.RawPath),
	)

	raw, err := r.invoke(ctx, t, spans[0], PreprocessRequest{
		InputPath:   t.RawPath,
		OutputDir:   t.Workspace.Converted,
		ProgressRef: r.ref(t, spans[0]),
	})
	if err != nil {
		return "", r.abort(t, logger, spans[0].Name, err)
	}
	pre, err := decodePreprocess(raw)
	if err != nil {
		return "", r.abort(t, logger, spans[0].Name, err)
	}
	r.complete(t, spans[0], pre)

	raw, err = r.invoke(ctx, t, spans[1], DiarizeRequest{
		AudioPath:   pre.PreprocessedFilePath,
		ProgressRef: r.ref(t, spans[1]),
	})
	if err != nil {
		return "", r.abort(t, logger, spans[1].Name, err)
	}
	diar, err := decodeDiarize(raw)
	if err != nil {
		return "", r.abort(t, logger, spans[1].Name, err)
	}
	r.complete(t, spans[1], diar)

	raw, err = r.invoke(ctx, t, spans[2], TranscribeRequest{
		Filename:    pre.PreprocessedFilePath,
		OutputDir:   t.Workspace.Transcript,
		Segments:    diar.Segments,
		ProgressRef: r.ref(t, spans[2]),
	})
	if err != nil {
		return "", r.abort(t, logger, spans[2].Name, err)
	}
	trans, err := decodeTranscribe(raw)
	if err != nil {
		return "", r.abort(t, logger, spans[2].Name, err)
	}
	r.complete(t, spans[2], trans)

	raw, err = r.invoke(ctx, t, spans[3], SummarizeRequest{
		TranscriptPath: trans.TranscriptionFilePath,
		OutputDir:      t.Workspace.Summary,
		ProgressRef:    r.ref(t, spans[3]),
	})
	if err != nil {
		return "", r.abort(t, logger, spans[3].Name, err)
	}
	sum, err := decodeSummarize(raw)
	if err != nil {
		return "", r.abort(t, logger, spans[3].Name, err)
	}
	r.complete(t, spans[3], sum)

	summary, err := os.ReadFile(sum.SummaryPath)
	if err != nil {
		marker := services.ErrConfiguration
		if os.IsNotExist(err) {
			marker = services.ErrNotFound
		}
		wrapped := services.Wrap(marker, StageSummarize, "read summary", sum.SummaryPath, err)
		return "", r.abort(t, logger, StageSummarize, wrapped)
	}

	r.recordCompletion(ctx, t, logger)

	r.bus.Publish(t.ID, progress.Event{
		Service:  "orchestrator",
		Step:     "done",
		Status:   progress.StatusCompleted,
		Progress: 100,
		Message:  "summary ready",
		Final:    true,
	})
	logger.Info("pipeline completed", logging.Duration("duration", time.Since(start)))
	return string(summary), nil
}

func (r *Runner) ref(t Task, span Span) ProgressRef {
	return ProgressRef{
		TaskID:      t.ID,
		ProgressURL: r.cfg.ProgressURL(t.ID),
		ProgressMin: span.Min,
		ProgressMax: span.Max,
	}
}

func (r *Runner) invoke(ctx context.Context, t Task, span Span, payload any) (json.RawMessage, error) {
	r.bus.Publish(t.ID, progress.Event{
		Service:  "orchestrator",
		Step:     span.Name,
		Status:   progress.StatusStarted,
		Progress: span.Min,
	})
	return r.client.Do(services.WithStage(ctx, span.Name), dispatch.Call{
		Name:    span.Name,
		URL:     r.cfg.StageURL(span.Name),
		Payload: payload,
		Timeout: r.cfg.StageTimeout(span.Name),
	})
}

func (r *Runner) complete(t Task, span Span, output any) {
	r.bus.Publish(t.ID, progress.Event{
		Service:  "orchestrator",
		Step:     span.Name,
		Status:   progress.StatusCompleted,
		Progress: span.Max,
		Output:   output,
	})
}

// abort publishes the task's single error event and returns err unchanged.
// No further stages run; artifacts from earlier stages stay on disk.
func (r *Runner) abort(t Task, logger *slog.Logger, stage string, err error) error {
	logger.Error("stage failed, aborting pipeline",
		logging.String(logging.FieldStage, stage),
		logging.Error(err),
	)
	r.bus.Publish(t.ID, progress.Event{
		Service: "orchestrator",
		Step:    stage,
		Status:  progress.StatusError,
		Message: err.Error(),
		Final:   true,
	})
	return err
}

// recordCompletion persists the finished task id. Failures are logged and
// swallowed: the task is done from the client's perspective regardless.
func (r *Runner) recordCompletion(ctx context.Context, t Task, logger *slog.Logger) {
	if r.store == nil {
		return
	}
	if err := r.store.Record(ctx, t.ID); err != nil {
		wrapped := services.Wrap(services.ErrBestEffort, "orchestrator", "record completion", "", err)
		logger.Warn("completion not recorded", logging.Error(wrapped))
	}
}
