package territory

import (
	"slices"

	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/model"
)

// Result is the outcome of partitioning one region.
type Result struct {
	// Territories holds one entry per Available cell, in anchor order.
	Territories []*model.Territory
	// Cells holds the tessellation result for every anchor.
	Cells []Cell
	// Classified counts buildings placed in a territory; Unclassified counts
	// buildings with an estimate that fell outside every cell.
	Classified   int
	Unclassified int
}

// Unavailable returns the cells that could not be generated.
func (r *Result) Unavailable() []Unavailable {
	var out []Unavailable
	for _, c := range r.Cells {
		if u, ok := c.(Unavailable); ok {
			out = append(out, u)
		}
	}
	return out
}

// Partition tessellates bbox around anchors and assigns every building that
// carries an occupancy estimate to the territory containing its centroid.
// Buildings without an estimate are ignored. A building lands in at most one
// territory; on a shared border the earlier anchor wins.
func Partition(bbox geometry.BBox, anchors []Anchor, buildings []*model.Building) *Result {
	res := &Result{Cells: Tessellate(bbox, anchors)}

	var tr rtree.RTreeG[int]
	var rings []*geom.LinearRing
	for _, c := range res.Cells {
		a, ok := c.(Available)
		if !ok {
			continue
		}
		tr.Insert(a.Bounds.Min(), a.Bounds.Max(), len(res.Territories))
		rings = append(rings, a.Ring)
		res.Territories = append(res.Territories, &model.Territory{
			ID:     a.Anchor.ID,
			Name:   a.Anchor.Name,
			Anchor: a.Anchor.Point,
			Ring:   a.Ring,
		})
	}

	var candidates []int
	for _, b := range buildings {
		if !b.HasOccupancy() {
			continue
		}
		pt := b.Footprint.Centroid.Array()
		candidates = candidates[:0]
		tr.Search(pt, pt, func(_, _ [2]float64, i int) bool {
			candidates = append(candidates, i)
			return true
		})
		slices.Sort(candidates)

		placed := false
		for _, i := range candidates {
			if !xy.IsPointInRing(geom.XY, b.Footprint.Centroid.Coord(), rings[i].FlatCoords()) {
				continue
			}
			t := res.Territories[i]
			t.BuildingIDs = append(t.BuildingIDs, b.ID)
			t.Population += b.Residents()
			t.Jobs += b.Jobs()
			b.TerritoryID = t.ID
			placed = true
			break
		}
		if placed {
			res.Classified++
		} else {
			res.Unclassified++
		}
	}
	return res
}

// RegionBBox returns the tessellation extent: configured when non-empty,
// otherwise the union of the building boxes and anchor points.
func RegionBBox(configured geometry.BBox, anchors []Anchor, buildings []*model.Building) geometry.BBox {
	if !configured.IsEmpty() && configured != (geometry.BBox{}) {
		return configured
	}
	b := geometry.EmptyBBox()
	for _, bl := range buildings {
		b.Extend(bl.Footprint.BBox)
	}
	for _, a := range anchors {
		b.ExtendPoint(a.Point)
	}
	return b
}
