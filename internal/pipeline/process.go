// Package pipeline turns one region's raw features into its grid index and
// demand graph, and runs many regions side by side.
package pipeline

import (
	"github.com/sells-group/demand-cli/internal/demand"
	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/grid"
	"github.com/sells-group/demand-cli/internal/model"
	"github.com/sells-group/demand-cli/internal/occupancy"
	"github.com/sells-group/demand-cli/internal/osm"
	"github.com/sells-group/demand-cli/internal/territory"
)

// Input is one region's raw data, fully loaded.
type Input struct {
	Code string
	// BBox bounds the territory tessellation. A zero box falls back to the
	// extent of the buildings and anchors.
	BBox      geometry.BBox
	Buildings []osm.Element
	Places    []osm.Element
}

// Options configures region processing.
type Options struct {
	Tables           occupancy.Tables
	IncludeAmenities bool
}

// Result holds every stage's output for one region.
type Result struct {
	Buildings []*model.Building
	Index     *grid.Index
	Partition *territory.Result
	Graph     *demand.Graph
	Stats     model.RegionStats
}

// ProcessRegion runs normalize, estimate, index, partition and synthesize in
// that order. Bad records are dropped along the way; it never fails.
func ProcessRegion(in Input, opts Options) *Result {
	res := &Result{}
	res.Stats.RawBuildings = len(in.Buildings)

	for _, e := range in.Buildings {
		b, ok := model.NewBuilding(e)
		if !ok {
			continue
		}
		res.Buildings = append(res.Buildings, b)
	}
	res.Stats.Buildings = len(res.Buildings)
	res.Stats.DroppedBuildings = res.Stats.RawBuildings - res.Stats.Buildings

	for _, b := range res.Buildings {
		opts.Tables.Estimate(b)
		if b.HasOccupancy() {
			res.Stats.EstimatedBuildings++
		}
	}

	res.Index = grid.Build(res.Buildings)
	res.Stats.Cells = len(res.Index.Cells)
	res.Stats.MaxDepth = res.Index.Stats.MaxDepth

	anchors := territory.Anchors(in.Places, territory.AnchorOptions{IncludeAmenities: opts.IncludeAmenities})
	bbox := territory.RegionBBox(in.BBox, anchors, res.Buildings)
	res.Partition = territory.Partition(bbox, anchors, res.Buildings)
	res.Stats.Anchors = len(anchors)
	res.Stats.Territories = len(res.Partition.Territories)
	res.Stats.UnavailableAnchors = len(res.Partition.Unavailable())
	res.Stats.ClassifiedBuildings = res.Partition.Classified

	res.Graph = demand.Synthesize(res.Partition.Territories)
	res.Stats.Edges = len(res.Graph.Edges)
	res.Stats.Population = res.Graph.Population
	res.Stats.Jobs = res.Graph.Jobs

	return res
}
