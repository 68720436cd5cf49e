package model

import (
	"strconv"
	"strings"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/osm"
)

// Tag keys read from raw building features.
const (
	TagBuilding          = "building"
	TagLevels            = "building:levels"
	TagUndergroundLevels = "building:levels:underground"
)

// OccupancyKind says which count, if any, a building's occupancy estimate holds.
type OccupancyKind int

const (
	OccupancyNone OccupancyKind = iota
	OccupancyResidential
	OccupancyJobs
)

func (k OccupancyKind) String() string {
	switch k {
	case OccupancyResidential:
		return "residential"
	case OccupancyJobs:
		return "jobs"
	default:
		return "none"
	}
}

// Occupancy is a building's estimated residents or jobs, never both.
type Occupancy struct {
	Kind  OccupancyKind
	Count int
}

// Cell identifies one grid cell by column and row.
type Cell struct {
	X int
	Y int
}

// Building is one physical structure. It is built once from a raw feature and
// enriched in place by each pipeline stage.
type Building struct {
	ID               string
	Footprint        geometry.Footprint
	Category         string
	Levels           int
	UndergroundDepth int

	Occupancy   Occupancy
	GridCell    *Cell
	TerritoryID string
}

// NewBuilding normalizes a raw building feature. It returns false for features
// that are not buildings or whose outline is degenerate.
func NewBuilding(e osm.Element) (*Building, bool) {
	if !e.HasTag(TagBuilding) {
		return nil, false
	}
	fp, ok := geometry.Normalize(e.Vertices())
	if !ok {
		return nil, false
	}
	return &Building{
		ID:               e.Key(),
		Footprint:        fp,
		Category:         strings.TrimSpace(e.Tag(TagBuilding)),
		Levels:           ParseLevels(e.Tag(TagLevels)),
		UndergroundDepth: ParseDepth(e.Tag(TagUndergroundLevels)),
	}, true
}

// HasOccupancy reports whether the building carries a resident or job estimate.
func (b *Building) HasOccupancy() bool {
	return b.Occupancy.Kind != OccupancyNone
}

// Residents returns the resident estimate, zero for non-residential buildings.
func (b *Building) Residents() int {
	if b.Occupancy.Kind == OccupancyResidential {
		return b.Occupancy.Count
	}
	return 0
}

// Jobs returns the job estimate, zero for non-job buildings.
func (b *Building) Jobs() int {
	if b.Occupancy.Kind == OccupancyJobs {
		return b.Occupancy.Count
	}
	return 0
}

// ParseLevels reads a floor count. Anything that is not a positive integer,
// fractional counts such as "2.5" included, counts as a single floor.
func ParseLevels(v string) int {
	n, ok := parseCount(v)
	if !ok || n < 1 {
		return 1
	}
	return n
}

// ParseDepth reads an underground level count. Values that are not a
// non-negative integer default to 1.
func ParseDepth(v string) int {
	n, ok := parseCount(v)
	if !ok || n < 0 {
		return 1
	}
	return n
}

func parseCount(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
