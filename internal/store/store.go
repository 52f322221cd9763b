// Package store persists run history: one row per pipeline run and one per
// resolution attempt.
package store

import (
	"context"

	"github.com/Magalhaes24/scout/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Attempts
	RecordAttempt(ctx context.Context, attempt model.Attempt) error
	ListAttempts(ctx context.Context, runID string) ([]model.Attempt, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return defaultListLimit
	}
	return filter.Limit
}
