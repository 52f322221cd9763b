package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/store"
)

// collectLimit bounds how many runs one snapshot inspects.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsComplete  int     `json:"runs_complete"`
	RunsCancelled int     `json:"runs_cancelled"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Row metrics, summed over runs that recorded a summary.
	RowsProcessed int            `json:"rows_processed"`
	RowsOK        int            `json:"rows_ok"`
	RowsNoValue   int            `json:"rows_value_not_found"`
	RowsNotFound  int            `json:"rows_not_found"`
	RowsErrored   int            `json:"rows_errored"`
	RowErrorRate  float64        `json:"row_error_rate"`
	TierCounts    map[string]int `json:"tier_counts,omitempty"`
	FallbackShare float64        `json:"fallback_share"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run history.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	// Runs come back newest first.
	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			break
		}
		snap.add(r)
	}

	finished := snap.RunsComplete + snap.RunsFailed + snap.RunsCancelled
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RowsProcessed > 0 {
		snap.RowErrorRate = float64(snap.RowsErrored) / float64(snap.RowsProcessed)
	}
	fast, fallback := snap.TierCounts[string(model.TierFast)], snap.TierCounts[string(model.TierFallback)]
	if fast+fallback > 0 {
		snap.FallbackShare = float64(fallback) / float64(fast+fallback)
	}
	return snap, nil
}

func (s *MetricsSnapshot) add(r model.Run) {
	s.RunsTotal++
	switch r.Status {
	case model.RunStatusComplete:
		s.RunsComplete++
	case model.RunStatusCancelled:
		s.RunsCancelled++
	case model.RunStatusFailed:
		s.RunsFailed++
	case model.RunStatusRunning:
		s.RunsRunning++
	}

	if r.Summary == nil {
		return
	}
	s.RowsProcessed += r.Summary.Processed
	s.RowsOK += r.Summary.StatusCounts[string(model.StatusOK)]
	s.RowsNoValue += r.Summary.StatusCounts[string(model.StatusValueNotFound)]
	s.RowsNotFound += r.Summary.StatusCounts[string(model.StatusNotFound)]
	s.RowsErrored += r.Summary.StatusCounts["error"]

	for tier, n := range r.Summary.TierCounts {
		if s.TierCounts == nil {
			s.TierCounts = make(map[string]int)
		}
		s.TierCounts[tier] += n
	}
}
