package pipeline

import (
	"time"

	"go.uber.org/zap"

	"go-etl-scheduler/internal/model"
)

// stageTracker records per-stage timing and counts for one run.
type stageTracker struct {
	runID   string
	logger  *zap.Logger
	now     func() time.Time
	stages  []model.StageMetrics
	current *model.StageMetrics
}

func newStageTracker(runID string, logger *zap.Logger, now func() time.Time) *stageTracker {
	return &stageTracker{runID: runID, logger: logger, now: now}
}

// begin opens a stage. Any stage still open is closed as failed first.
func (t *stageTracker) begin(stage model.Stage) {
	if t.current != nil {
		t.fail("superseded")
	}
	t.current = &model.StageMetrics{
		Stage:     stage,
		StartedAt: t.now(),
		Status:    "running",
	}
	t.logger.Debug("stage started", zap.String("run_id", t.runID), zap.String("stage", string(stage)))
}

func (t *stageTracker) complete(records int) {
	if t.current == nil {
		return
	}
	t.current.Records = records
	t.close("completed")
	last := t.stages[len(t.stages)-1]
	t.logger.Debug("stage completed",
		zap.String("run_id", t.runID),
		zap.String("stage", string(last.Stage)),
		zap.Int("records", records),
		zap.Duration("duration", last.Duration))
}

func (t *stageTracker) fail(reason string) {
	if t.current == nil {
		return
	}
	t.current.Error = reason
	t.close("failed")
}

func (t *stageTracker) close(status string) {
	t.current.FinishedAt = t.now()
	t.current.Duration = t.current.FinishedAt.Sub(t.current.StartedAt)
	t.current.Status = status
	t.stages = append(t.stages, *t.current)
	t.current = nil
}

// metrics returns the closed stages in order.
func (t *stageTracker) metrics() []model.StageMetrics {
	return append([]model.StageMetrics(nil), t.stages...)
}
