package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-etl-scheduler/internal/config"
	"go-etl-scheduler/internal/model"
)

// Recorder persists finalized run results.
type Recorder interface {
	SaveRun(ctx context.Context, result model.RunResult) error
}

// Runner executes one extract, transform and load pass.
type Runner struct {
	extractor   Extractor
	transformer *Transformer
	loader      *Loader
	report      config.ReportConfig
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
}

type RunnerOption func(*Runner)

// WithRecorder saves every finalized result to rec.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithReport enables the per-run summary.
func WithReport(report config.ReportConfig) RunnerOption {
	return func(r *Runner) { r.report = report }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(extractor Extractor, transformer *Transformer, loader *Loader, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig wires a runner with the configured source, transform, primary
// destination and fallback sink.
func NewFromConfig(cfg *config.Config, logger *zap.Logger, opts ...RunnerOption) (*Runner, *FileSink, error) {
	extractor, err := NewExtractor(cfg.Source, logger)
	if err != nil {
		return nil, nil, err
	}
	transformer, err := NewTransformer(cfg.Transform)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid transform: %w", err)
	}
	sink := NewFileSink(cfg.FallbackPath, cfg.FallbackFormat, cfg.FallbackPrefix)
	loader := NewLoader(NewSQLDestination(cfg.Destination, logger), sink, logger)

	opts = append([]RunnerOption{WithReport(cfg.Report)}, opts...)
	return NewRunner(extractor, transformer, loader, logger, opts...), sink, nil
}

// RunPipeline runs every stage in order and always returns a finalized
// result. Stage errors are reported in the result, never returned or raised.
func (r *Runner) RunPipeline(ctx context.Context) model.RunResult {
	res := &model.RunResult{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Stage:     model.StageStarted,
		Errors:    []string{},
	}
	tracker := newStageTracker(res.ID, r.logger, r.now)

	r.logger.Info("pipeline run started", zap.String("run_id", res.ID))

	func() {
		defer func() {
			if p := recover(); p != nil {
				r.fail(res, tracker, fmt.Errorf("panic: %v", p))
			}
		}()
		r.execute(ctx, res, tracker)
	}()

	r.finalize(ctx, res, tracker)
	return res.Clone()
}

func (r *Runner) execute(ctx context.Context, res *model.RunResult, tracker *stageTracker) {
	res.Stage = model.StageExtracting
	tracker.begin(res.Stage)
	records, err := r.extractor.Extract(ctx)
	if err != nil {
		r.fail(res, tracker, err)
		return
	}
	res.RecordsExtracted = len(records)
	tracker.complete(len(records))

	res.Stage = model.StageTransforming
	tracker.begin(res.Stage)
	transformed, err := r.transformer.At(res.StartedAt).Transform(records)
	if err != nil {
		r.fail(res, tracker, err)
		return
	}
	res.RecordsTransformed = len(transformed)
	tracker.complete(len(transformed))
	summary := Summarize(transformed, r.report.GroupBy, r.report.Sum)

	res.Stage = model.StageLoading
	tracker.begin(res.Stage)
	outcome, err := r.loader.Load(ctx, transformed, res.StartedAt)
	if err != nil {
		r.fail(res, tracker, err)
		return
	}
	res.RecordsLoaded = outcome.Count
	res.Destination = outcome.Destination
	res.FallbackFile = outcome.FallbackFile
	tracker.complete(outcome.Count)

	res.Status = model.StatusSuccess
	if outcome.Destination == model.DestinationFallback {
		res.Status = model.StatusPartial
		res.Errors = append(res.Errors, fmt.Sprintf("%s: primary destination unavailable: %s", model.StageLoading, outcome.PrimaryError))
	}
	res.Summary = summary
}

// fail moves the run to failed, prefixing the error with the current stage.
func (r *Runner) fail(res *model.RunResult, tracker *stageTracker, err error) {
	res.Status = model.StatusFailed
	res.FailedStage = res.Stage
	res.RecordsLoaded = 0
	res.Destination = ""
	res.FallbackFile = ""
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", res.Stage, err))
	tracker.fail(err.Error())

	fields := []zap.Field{
		zap.String("run_id", res.ID),
		zap.String("stage", string(res.Stage)),
		zap.Error(err),
	}
	var te *TransformError
	if errors.As(err, &te) {
		fields = append(fields, zap.Int("record_index", te.Index))
	}
	r.logger.Error("pipeline stage failed", fields...)
}

func (r *Runner) finalize(ctx context.Context, res *model.RunResult, tracker *stageTracker) {
	if res.Status == "" {
		res.Status = model.StatusFailed
	}
	res.Stage = model.StageFinalized
	res.FinishedAt = r.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	res.Stages = tracker.metrics()

	if r.recorder != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := r.recorder.SaveRun(saveCtx, res.Clone()); err != nil {
			r.logger.Error("failed to save run result", zap.String("run_id", res.ID), zap.Error(err))
		}
		cancel()
	}

	r.logger.Info("pipeline run finished",
		zap.String("run_id", res.ID),
		zap.String("status", string(res.Status)),
		zap.Int("extracted", res.RecordsExtracted),
		zap.Int("transformed", res.RecordsTransformed),
		zap.Int("loaded", res.RecordsLoaded),
		zap.String("destination", string(res.Destination)),
		zap.String("fallback_file", res.FallbackFile),
		zap.Duration("duration", res.Duration),
		zap.Strings("errors", res.Errors))
}
