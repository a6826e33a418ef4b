package model

import "time"

// StageMetrics represents metrics for one stage of a run
type StageMetrics struct {
	Stage      Stage         `json:"stage"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Records    int           `json:"records"`
	Status     string        `json:"status"` // "completed", "failed"
	Error      string        `json:"error,omitempty"`
}
