package model

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/demand-cli/internal/geometry"
)

// Share is a fraction of a region-wide total. Valid is false when the
// region total is zero and the share is undefined.
type Share struct {
	Value float64
	Valid bool
}

// NewShare returns part/total, or an invalid Share when total is zero.
func NewShare(part, total int) Share {
	if total == 0 {
		return Share{}
	}
	return Share{Value: float64(part) / float64(total), Valid: true}
}

// Territory is the catchment area of one neighborhood anchor.
type Territory struct {
	ID     string
	Name   string
	Anchor geometry.LonLat
	Ring   *geom.LinearRing

	BuildingIDs []string
	Population  int
	Jobs        int

	PopulationShare Share
	JobShare        Share

	// EdgeIDs lists the demand edges whose residence side is this territory.
	EdgeIDs []string
}

// DemandEdge is the estimated commuter flow from a residence territory to a
// job territory.
type DemandEdge struct {
	ID             string
	ResidenceID    string
	JobID          string
	Size           int
	DistanceMeters int
	TravelSeconds  int
}
