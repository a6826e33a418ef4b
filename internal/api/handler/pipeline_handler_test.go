package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/internal/store"
	"go-etl-scheduler/pkg/utils"
)

type fakeScheduler struct {
	busy    bool
	state   model.ScheduleState
	result  model.RunResult
	trigger int
}

func (f *fakeScheduler) TriggerNow() bool {
	if f.busy {
		return false
	}
	f.trigger++
	return true
}

func (f *fakeScheduler) RunNow(context.Context) (model.RunResult, bool) {
	if f.busy {
		return model.RunResult{}, false
	}
	return f.result, true
}

func (f *fakeScheduler) Status() model.ScheduleState { return f.state }

type fakeHistory struct {
	runs      []store.RunInfo
	lastLimit int
	result    map[string]model.RunResult
	err       error
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]store.RunInfo, error) {
	f.lastLimit = limit
	return f.runs, f.err
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (model.RunResult, error) {
	if res, ok := f.result[id]; ok {
		return res, nil
	}
	return model.RunResult{}, store.ErrRunNotFound
}

type fakeFiles []utils.OutputFile

func (f fakeFiles) Files() ([]utils.OutputFile, error) { return f, nil }

func newHandler(t *testing.T, s *fakeScheduler, h *fakeHistory) *Handler {
	return New(s, h, fakeFiles{{Name: "processed_sales_20241217_020000.000000.csv", Type: "csv", Size: 42}}, zaptest.NewLogger(t))
}

func call(fn http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestRunNow(t *testing.T) {
	s := &fakeScheduler{}
	h := newHandler(t, s, &fakeHistory{})

	rec := call(h.RunNow, http.MethodPost, "/run-now")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp TriggerResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Accepted)
	assert.Equal(t, 1, s.trigger)

	s.busy = true
	rec = call(h.RunNow, http.MethodGet, "/run-now")
	assert.Equal(t, http.StatusConflict, rec.Code)
	decode(t, rec, &resp)
	assert.False(t, resp.Accepted)
}

func TestRunETL(t *testing.T) {
	s := &fakeScheduler{result: model.RunResult{ID: "r1", Status: model.StatusPartial, RecordsLoaded: 10}}
	h := newHandler(t, s, &fakeHistory{})

	rec := call(h.RunETL, http.MethodPost, "/run-etl")
	assert.Equal(t, http.StatusOK, rec.Code)
	var res model.RunResult
	decode(t, rec, &res)
	assert.Equal(t, model.StatusPartial, res.Status)
	assert.Equal(t, 10, res.RecordsLoaded)

	s.busy = true
	rec = call(h.RunETL, http.MethodPost, "/run-etl")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealth(t *testing.T) {
	s := &fakeScheduler{state: model.ScheduleState{Running: true}}
	h := newHandler(t, s, &fakeHistory{})

	var resp HealthResponse
	decode(t, call(h.Health, http.MethodGet, "/health"), &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "running", resp.Scheduler)

	s.state.LastRun = &model.RunResult{Status: model.StatusFailed}
	decode(t, call(h.Health, http.MethodGet, "/health"), &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, model.StatusFailed, resp.LastRunStatus)

	s.state.LastRun = &model.RunResult{Status: model.StatusPartial}
	decode(t, call(h.Health, http.MethodGet, "/health"), &resp)
	assert.Equal(t, "healthy", resp.Status)
}

func TestSchedule(t *testing.T) {
	next := time.Date(2024, 12, 17, 2, 5, 0, 0, time.UTC)
	s := &fakeScheduler{state: model.ScheduleState{
		Interval:     5 * time.Minute,
		NextRun:      next,
		SkippedTicks: 1,
		Notes:        []string{"tick skipped"},
	}}
	h := newHandler(t, s, &fakeHistory{})

	var resp ScheduleResponse
	decode(t, call(h.Schedule, http.MethodGet, "/schedule"), &resp)
	assert.Equal(t, 300, resp.IntervalSeconds)
	assert.Equal(t, "2024-12-17T02:05:00Z", resp.NextRun)
	assert.Equal(t, 1, resp.SkippedTicks)
	assert.Equal(t, []string{"tick skipped"}, resp.Notes)
}

func TestListRuns(t *testing.T) {
	hist := &fakeHistory{runs: []store.RunInfo{{ID: "a"}, {ID: "b"}}}
	h := newHandler(t, &fakeScheduler{}, hist)

	rec := call(h.ListRuns, http.MethodGet, "/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRunLimit, hist.lastLimit)
	var runs []store.RunInfo
	decode(t, rec, &runs)
	assert.Len(t, runs, 2)

	call(h.ListRuns, http.MethodGet, "/runs?limit=5")
	assert.Equal(t, 5, hist.lastLimit)

	assert.Equal(t, http.StatusBadRequest, call(h.ListRuns, http.MethodGet, "/runs?limit=x").Code)

	hist.err = errors.New("db closed")
	assert.Equal(t, http.StatusInternalServerError, call(h.ListRuns, http.MethodGet, "/runs").Code)
}

func TestGetRun(t *testing.T) {
	hist := &fakeHistory{result: map[string]model.RunResult{"abc": {ID: "abc", Status: model.StatusSuccess}}}
	h := newHandler(t, &fakeScheduler{}, hist)

	rec := call(h.GetRun, http.MethodGet, "/runs/abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	var res model.RunResult
	decode(t, rec, &res)
	assert.Equal(t, "abc", res.ID)

	assert.Equal(t, http.StatusNotFound, call(h.GetRun, http.MethodGet, "/runs/zzz").Code)
}

func TestFallback(t *testing.T) {
	h := newHandler(t, &fakeScheduler{}, &fakeHistory{})

	var resp struct {
		Files []utils.OutputFile `json:"files"`
		Count int                `json:"count"`
	}
	decode(t, call(h.Fallback, http.MethodGet, "/fallback"), &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "csv", resp.Files[0].Type)
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := &fakeScheduler{result: model.RunResult{
		ID:     "r1",
		Status: model.StatusSuccess,
		Summary: &model.RunSummary{GroupBy: "category", Groups: []model.GroupSummary{
			{Key: "Computers", Count: 1, Sums: map[string]float64{"total_sales": math.Inf(1)}},
		}},
	}}
	h := New(s, &fakeHistory{}, fakeFiles{}, zap.New(core))

	rec := call(h.RunETL, http.MethodPost, "/run-etl")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("failed to encode response").Len())
}
