// Package grid bins normalized buildings into a uniform ~100 m grid laid over
// the union of their bounding boxes.
package grid

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/model"
)

// CellSizeMeters is the geodesic step between grid boundaries.
const CellSizeMeters = 100.0

// Stats summarizes the indexed building set.
type Stats struct {
	BuildingCount int
	MaxDepth      int
}

// Index is a sparse grid over a region's buildings.
type Index struct {
	// CellHeight is the realized latitude step between the first two rows,
	// rounded to four decimals. An index with fewer than two rows has no
	// realized step and uses the nominal 100 m step instead.
	CellHeight float64
	// BBox is the union of the building boxes, with MaxLat moved to the
	// upper edge of the last row.
	BBox geometry.BBox
	// Columns and Rows hold the inclusive lower boundary of each column
	// (longitude) and row (latitude).
	Columns []float64
	Rows    []float64
	// Cells maps a cell to positions in Buildings.
	Cells     map[model.Cell][]int
	Buildings []*model.Building
	Stats     Stats
}

// Build indexes buildings and sets each building's GridCell. Cell assignment
// depends only on the building centroids and the region box.
func Build(buildings []*model.Building) *Index {
	idx := &Index{
		CellHeight: roundStep(geometry.MetersToLatDegrees(CellSizeMeters)),
		Cells:      make(map[model.Cell][]int),
		Buildings:  buildings,
		Stats:      Stats{BuildingCount: len(buildings), MaxDepth: 1},
	}
	for _, b := range buildings {
		idx.Stats.MaxDepth = max(idx.Stats.MaxDepth, b.UndergroundDepth)
	}
	if len(buildings) == 0 {
		return idx
	}

	bbox := geometry.EmptyBBox()
	for _, b := range buildings {
		bbox.Extend(b.Footprint.BBox)
	}

	idx.Columns = columnBoundaries(bbox)
	idx.Rows = rowBoundaries(bbox)
	if len(idx.Rows) > 1 {
		idx.CellHeight = roundStep(idx.Rows[1] - idx.Rows[0])
	}
	bbox.MaxLat = idx.Rows[len(idx.Rows)-1] + idx.CellHeight
	idx.BBox = bbox

	for i, b := range buildings {
		cell := model.Cell{
			X: boundaryIndex(idx.Columns, b.Footprint.Centroid.Lon),
			Y: boundaryIndex(idx.Rows, b.Footprint.Centroid.Lat),
		}
		b.GridCell = &cell
		idx.Cells[cell] = append(idx.Cells[cell], i)
	}
	return idx
}

// SortedCells returns the occupied cells ordered by column, then row.
func (idx *Index) SortedCells() []model.Cell {
	cells := make([]model.Cell, 0, len(idx.Cells))
	for c := range idx.Cells {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b model.Cell) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return cells
}

// Dimensions returns the column and row counts.
func (idx *Index) Dimensions() (cols, rows int) {
	return len(idx.Columns), len(idx.Rows)
}

func roundStep(deg float64) float64 {
	return math.Round(deg*1e4) / 1e4
}

// columnBoundaries walks the southern edge of bbox eastward in fixed steps.
func columnBoundaries(bbox geometry.BBox) []float64 {
	west := geometry.LonLat{Lon: bbox.MinLon, Lat: bbox.MinLat}
	east := geometry.LonLat{Lon: bbox.MaxLon, Lat: bbox.MinLat}
	n := stepCount(geometry.Distance(west, east))

	cols := make([]float64, n)
	for k := range cols {
		cols[k] = geometry.Along(west, east, float64(k)*CellSizeMeters).Lon
	}
	return cols
}

// rowBoundaries walks the western edge of bbox northward in fixed steps.
// Meridians are great circles, so the steps are uniform in latitude.
func rowBoundaries(bbox geometry.BBox) []float64 {
	south := geometry.LonLat{Lon: bbox.MinLon, Lat: bbox.MinLat}
	north := geometry.LonLat{Lon: bbox.MinLon, Lat: bbox.MaxLat}
	n := stepCount(geometry.Distance(south, north))
	step := geometry.MetersToLatDegrees(CellSizeMeters)

	rows := make([]float64, n)
	for k := range rows {
		rows[k] = bbox.MinLat + float64(k)*step
	}
	return rows
}

// stepCount is the number of boundaries at 0, step, 2*step, ... <= length.
func stepCount(length float64) int {
	return int(math.Floor(length/CellSizeMeters)) + 1
}

// boundaryIndex returns the last boundary <= v. Values beyond the last
// boundary fall in the last cell; values before the first fall in the first.
func boundaryIndex(bounds []float64, v float64) int {
	i := sort.Search(len(bounds), func(i int) bool { return bounds[i] > v }) - 1
	return max(i, 0)
}
