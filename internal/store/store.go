// Package store persists analysis runs. The memory store backs single-node
// deployments and tests; the MySQL store is for installations that want run
// history to survive restarts.
package store

import (
	"context"
	"errors"

	"serp-similarity/internal/models"
)

// ErrNotFound is returned when no run exists for the given ID.
var ErrNotFound = errors.New("run not found")

// RunStore persists runs and serves them back by ID or as summaries.
// Implementations must be safe for concurrent use; Save is an upsert keyed
// on run ID.
type RunStore interface {
	Save(ctx context.Context, run *models.Run) error
	Get(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, limit, offset int) ([]models.RunSummary, int, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
