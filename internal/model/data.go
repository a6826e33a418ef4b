package model

import "time"

// RunStatus is the final outcome of one pipeline run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success" // loaded into the primary destination
	StatusPartial RunStatus = "partial" // primary down, batch preserved in the fallback sink
	StatusFailed  RunStatus = "failed"
)

// Stage names the step a run is in.
type Stage string

const (
	StageStarted      Stage = "Started"
	StageExtracting   Stage = "Extracting"
	StageTransforming Stage = "Transforming"
	StageLoading      Stage = "Loading"
	StageFinalized    Stage = "Finalized"
)

// Destination records where a batch ended up.
type Destination string

const (
	DestinationPrimary  Destination = "primary"
	DestinationFallback Destination = "fallback"
)

// RunResult describes one pipeline execution. The runner finalizes it once and
// only hands out copies afterwards.
type RunResult struct {
	ID                 string         `json:"id"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
	Duration           time.Duration  `json:"duration"`
	Status             RunStatus      `json:"status"`
	Stage              Stage          `json:"stage"`
	FailedStage        Stage          `json:"failed_stage,omitempty"`
	RecordsExtracted   int            `json:"records_extracted"`
	RecordsTransformed int            `json:"records_transformed"`
	RecordsLoaded      int            `json:"records_loaded"`
	Destination        Destination    `json:"destination,omitempty"`
	FallbackFile       string         `json:"fallback_file,omitempty"`
	Errors             []string       `json:"errors"`
	Stages             []StageMetrics `json:"stages,omitempty"`
	Summary            *RunSummary    `json:"summary,omitempty"`
}

// Clone returns a deep copy so callers cannot alter a finalized result.
func (r RunResult) Clone() RunResult {
	out := r
	out.Errors = append([]string(nil), r.Errors...)
	out.Stages = append([]StageMetrics(nil), r.Stages...)
	if r.Summary != nil {
		s := r.Summary.clone()
		out.Summary = &s
	}
	return out
}

// LoadOutcome is what the loader reports for one batch.
type LoadOutcome struct {
	Destination  Destination `json:"destination"`
	Count        int         `json:"count"`
	FallbackFile string      `json:"fallback_file,omitempty"`
	PrimaryError string      `json:"primary_error,omitempty"`
}

// RunSummary groups the loaded batch by one field.
type RunSummary struct {
	GroupBy string         `json:"group_by"`
	Groups  []GroupSummary `json:"groups"`
}

// GroupSummary holds the count and field sums of one group.
type GroupSummary struct {
	Key   string             `json:"key"`
	Count int                `json:"count"`
	Sums  map[string]float64 `json:"sums"`
}

func (s RunSummary) clone() RunSummary {
	out := RunSummary{GroupBy: s.GroupBy, Groups: make([]GroupSummary, len(s.Groups))}
	for i, g := range s.Groups {
		sums := make(map[string]float64, len(g.Sums))
		for k, v := range g.Sums {
			sums[k] = v
		}
		out.Groups[i] = GroupSummary{Key: g.Key, Count: g.Count, Sums: sums}
	}
	return out
}
