package model

import (
	"encoding/json"
	"time"
)

// ScheduleState is a point-in-time copy of the scheduler's state.
type ScheduleState struct {
	Interval            time.Duration `json:"-"`
	NextRun             time.Time     `json:"next_run"`
	Running             bool          `json:"running"`
	RunInFlight         bool          `json:"run_in_flight"`
	CurrentRunStartedAt *time.Time    `json:"current_run_started_at,omitempty"`
	LastRun             *RunResult    `json:"last_run,omitempty"`
	SkippedTicks        int           `json:"skipped_ticks"`
	Notes               []string      `json:"notes"`
}

// MarshalJSON reports the interval in whole seconds.
func (s ScheduleState) MarshalJSON() ([]byte, error) {
	type state ScheduleState
	return json.Marshal(struct {
		IntervalSeconds int64 `json:"interval_seconds"`
		state
	}{int64(s.Interval / time.Second), state(s)})
}
