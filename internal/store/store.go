// Package store persists the run ledger: one row per processed region plus
// the territories it produced.
package store

import (
	"context"

	"github.com/sells-group/demand-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Region string          `json:"region,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// TerritoryRecord is one stored territory of a run.
type TerritoryRecord struct {
	RunID       string `json:"run_id"`
	TerritoryID string `json:"territory_id"`
	Name        string `json:"name"`
	Population  int    `json:"population"`
	Jobs        int    `json:"jobs"`
	Buildings   int    `json:"buildings"`
	// Geometry is an EWKB polygon, SRID 4326.
	Geometry []byte `json:"-"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, region string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats *model.RegionStats) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Territories
	SaveTerritories(ctx context.Context, runID string, territories []*model.Territory) error
	ListTerritories(ctx context.Context, runID string) ([]TerritoryRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
