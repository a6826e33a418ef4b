package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"go-etl-scheduler/internal/api/handler"
	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/internal/pipeline"
	"go-etl-scheduler/internal/store"
	"go-etl-scheduler/pkg/router"
)

type idleScheduler struct{}

func (idleScheduler) TriggerNow() bool { return true }
func (idleScheduler) RunNow(context.Context) (model.RunResult, bool) {
	return model.RunResult{ID: "r"}, true
}
func (idleScheduler) Status() model.ScheduleState { return model.ScheduleState{Running: true} }

type emptyHistory struct{}

func (emptyHistory) ListRuns(context.Context, int) ([]store.RunInfo, error) { return []store.RunInfo{}, nil }
func (emptyHistory) GetRun(context.Context, string) (model.RunResult, error) {
	return model.RunResult{}, store.ErrRunNotFound
}

func TestRegisterRoutes(t *testing.T) {
	logger := zaptest.NewLogger(t)
	r := router.New(logger)
	RegisterRoutes(r, handler.New(idleScheduler{}, emptyHistory{}, pipeline.NewFileSink(t.TempDir(), "csv", "processed_sales"), logger))

	tests := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/schedule", http.StatusOK},
		{http.MethodPost, "/run-now", http.StatusAccepted},
		{http.MethodGet, "/run-now", http.StatusAccepted},
		{http.MethodPost, "/run-etl", http.StatusOK},
		{http.MethodGet, "/run-etl", http.StatusMethodNotAllowed},
		{http.MethodGet, "/runs", http.StatusOK},
		{http.MethodGet, "/runs/missing", http.StatusNotFound},
		{http.MethodGet, "/fallback", http.StatusOK},
		{http.MethodGet, "/swagger/doc.json", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
