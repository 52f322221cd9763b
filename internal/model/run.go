package model

import "time"

// RunStatus is the lifecycle state of a pipeline run in the history store.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Pass names the stage that produced an attempt.
type Pass string

const (
	PassParallel Pass = "parallel"
	PassRetry    Pass = "retry"
	PassBackfill Pass = "backfill"
	PassLookup   Pass = "lookup"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string     `json:"id"`
	InputPath  string     `json:"input_path"`
	OutputPath string     `json:"output_path"`
	StartRow   int        `json:"start_row"`
	Workers    int        `json:"workers"`
	Status     RunStatus  `json:"status"`
	Summary    *Summary   `json:"summary,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Jobs         int            `json:"jobs"`
	Processed    int            `json:"processed"`
	Retried      int            `json:"retried"`
	Backfilled   int            `json:"backfilled"`
	Cancelled    bool           `json:"cancelled"`
	StatusCounts map[string]int `json:"status_counts,omitempty"`
	TierCounts   map[string]int `json:"tier_counts,omitempty"`
}

// Count tallies one result into the summary.
func (s *Summary) Count(status Status, tier Tier) {
	if s.StatusCounts == nil {
		s.StatusCounts = make(map[string]int)
	}
	if s.TierCounts == nil {
		s.TierCounts = make(map[string]int)
	}
	key := string(status)
	if status.IsError() {
		key = "error"
	}
	s.StatusCounts[key]++
	s.TierCounts[string(tier)]++
}

// Attempt is a single recorded resolution within a run.
type Attempt struct {
	RunID       string    `json:"run_id"`
	Pass        Pass      `json:"pass"`
	RowIndex    int       `json:"row_index"`
	Name        string    `json:"name"`
	Affiliation string    `json:"affiliation"`
	Status      Status    `json:"status"`
	Tier        Tier      `json:"tier"`
	URL         string    `json:"url,omitempty"`
	RawValue    string    `json:"raw_value,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AttemptFrom builds an Attempt record from an aggregated job result.
func AttemptFrom(runID string, pass Pass, jr JobResult) Attempt {
	a := Attempt{
		RunID:       runID,
		Pass:        pass,
		RowIndex:    jr.Job.Index,
		Name:        jr.Job.Name,
		Affiliation: jr.Job.Affiliation,
		Status:      jr.Result.Status,
		Tier:        jr.Tier,
		URL:         jr.Result.URL,
		RawValue:    jr.Result.RawValue,
		DurationMs:  jr.Duration.Milliseconds(),
		CreatedAt:   jr.Result.UpdatedAt,
	}
	if jr.Err != nil {
		a.Error = jr.Err.Error()
	}
	return a
}
