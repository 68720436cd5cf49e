package occupancy

import (
	"math"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/model"
)

// Lookup returns the occupancy kind and density for a category. Unknown and
// empty categories return OccupancyNone.
func (t Tables) Lookup(category string) (model.OccupancyKind, float64) {
	if d, ok := t.Residential[category]; ok {
		return model.OccupancyResidential, d
	}
	if d, ok := t.Jobs[category]; ok {
		return model.OccupancyJobs, d
	}
	return model.OccupancyNone, 0
}

// FloorArea returns the building's total floor area in square feet.
func FloorArea(b *model.Building) float64 {
	levels := max(b.Levels, 1)
	return geometry.PlanarArea(b.Footprint.Ring) * float64(levels) * geometry.SquareFeetPerSquareMeter
}

// Estimate sets the building's occupancy from its category and floor area.
// Buildings in neither table are left without an estimate.
func (t Tables) Estimate(b *model.Building) {
	kind, density := t.Lookup(b.Category)
	if kind == model.OccupancyNone {
		b.Occupancy = model.Occupancy{}
		return
	}
	b.Occupancy = model.Occupancy{
		Kind:  kind,
		Count: int(math.Floor(FloorArea(b) / density)),
	}
}
