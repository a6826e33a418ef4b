package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/internal/store"
	"go-etl-scheduler/pkg/router"
	"go-etl-scheduler/pkg/utils"
)

const defaultRunLimit = 20

// Scheduler is the part of the scheduler the control API drives.
type Scheduler interface {
	TriggerNow() bool
	RunNow(ctx context.Context) (model.RunResult, bool)
	Status() model.ScheduleState
}

// History reads past runs.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error)
	GetRun(ctx context.Context, id string) (model.RunResult, error)
}

// FallbackFiles lists files written while the primary destination was down.
type FallbackFiles interface {
	Files() ([]utils.OutputFile, error)
}

// Handler serves the control endpoints. It only forwards to the scheduler
// and reads state; it makes no pipeline decisions of its own.
type Handler struct {
	scheduler Scheduler
	history   History
	fallback  FallbackFiles
	logger    *zap.Logger
}

func New(scheduler Scheduler, history History, fallback FallbackFiles, logger *zap.Logger) *Handler {
	return &Handler{scheduler: scheduler, history: history, fallback: fallback, logger: logger}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status        string          `json:"status"` // healthy, degraded
	Scheduler     string          `json:"scheduler"`
	RunInFlight   bool            `json:"run_in_flight"`
	LastRunStatus model.RunStatus `json:"last_run_status,omitempty"`
}

// ScheduleResponse is returned by /schedule.
type ScheduleResponse struct {
	IntervalSeconds int      `json:"interval_seconds"`
	NextRun         string   `json:"next_run,omitempty"`
	RunInFlight     bool     `json:"run_in_flight"`
	SkippedTicks    int      `json:"skipped_ticks"`
	Notes           []string `json:"notes"`
}

// TriggerResponse is returned by /run-now and by /run-etl when busy.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Health reports service health
// @Summary Health check
// @Description Reports healthy unless the last run failed
// @Tags service
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.scheduler.Status()
	resp := HealthResponse{
		Status:      "healthy",
		Scheduler:   "stopped",
		RunInFlight: state.RunInFlight,
	}
	if state.Running {
		resp.Scheduler = "running"
	}
	if state.LastRun != nil {
		resp.LastRunStatus = state.LastRun.Status
		if state.LastRun.Status == model.StatusFailed {
			resp.Status = "degraded"
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Status returns the full scheduler state
// @Summary Scheduler status
// @Tags schedule
// @Produce json
// @Success 200 {object} model.ScheduleState
// @Router /status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// Schedule returns the cadence and next run time
// @Summary Schedule
// @Tags schedule
// @Produce json
// @Success 200 {object} ScheduleResponse
// @Router /schedule [get]
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	state := h.scheduler.Status()
	resp := ScheduleResponse{
		IntervalSeconds: int(state.Interval.Seconds()),
		RunInFlight:     state.RunInFlight,
		SkippedTicks:    state.SkippedTicks,
		Notes:           state.Notes,
	}
	if !state.NextRun.IsZero() {
		resp.NextRun = state.NextRun.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RunNow starts a run in the background
// @Summary Trigger a run
// @Description Starts a run unless one is already in flight
// @Tags runs
// @Produce json
// @Success 202 {object} TriggerResponse
// @Failure 409 {object} TriggerResponse
// @Router /run-now [post]
func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	if !h.scheduler.TriggerNow() {
		h.writeJSON(w, http.StatusConflict, TriggerResponse{Accepted: false, Message: "a run is already in flight or the scheduler is stopped"})
		return
	}
	h.logger.Info("run triggered via API")
	h.writeJSON(w, http.StatusAccepted, TriggerResponse{Accepted: true, Message: "run started"})
}

// RunETL runs the pipeline and waits for the result
// @Summary Run synchronously
// @Tags runs
// @Produce json
// @Success 200 {object} model.RunResult
// @Failure 409 {object} TriggerResponse
// @Router /run-etl [post]
func (h *Handler) RunETL(w http.ResponseWriter, r *http.Request) {
	res, ok := h.scheduler.RunNow(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusConflict, TriggerResponse{Accepted: false, Message: "a run is already in flight or the scheduler is stopped"})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListRuns returns recent runs
// @Summary List runs
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum number of runs" default(20)
// @Success 200 {array} store.RunInfo
// @Failure 400 {object} map[string]interface{} "Invalid limit"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunResult
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := router.PathParam(r.URL.Path, "/runs/*")
	if id == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.history.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch run", zap.String("run_id", id), zap.Error(err))
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Fallback lists fallback files awaiting reconciliation
// @Summary List fallback files
// @Tags files
// @Produce json
// @Success 200 {object} map[string]interface{} "Fallback files"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /fallback [get]
func (h *Handler) Fallback(w http.ResponseWriter, r *http.Request) {
	files, err := h.fallback.Files()
	if err != nil {
		h.logger.Error("failed to list fallback files", zap.Error(err))
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// writeJSON answers 500 when v cannot be encoded.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Int("status", status), zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}
