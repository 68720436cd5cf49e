package model

import "time"

// RunStatus represents the current state of a region processing run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RegionStats summarizes one processed region.
type RegionStats struct {
	RawBuildings        int `json:"raw_buildings"`
	Buildings           int `json:"buildings"`
	DroppedBuildings    int `json:"dropped_buildings"`
	EstimatedBuildings  int `json:"estimated_buildings"`
	ClassifiedBuildings int `json:"classified_buildings"`
	Cells               int `json:"cells"`
	MaxDepth            int `json:"max_depth"`
	Anchors             int `json:"anchors"`
	Territories         int `json:"territories"`
	UnavailableAnchors  int `json:"unavailable_anchors"`
	Edges               int `json:"edges"`
	Population          int `json:"population"`
	Jobs                int `json:"jobs"`
}

// Run is one ledger entry for a processed region.
type Run struct {
	ID        string       `json:"id"`
	Region    string       `json:"region"`
	Status    RunStatus    `json:"status"`
	Stats     *RegionStats `json:"stats,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
