// Package export writes optional GIS side outputs for a processed region.
package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/model"
)

// Footprint attribute columns, in DBF order.
var footprintFields = []shp.Field{
	shp.StringField("ID", 24),
	shp.StringField("CATEGORY", 32),
	shp.NumberField("RESIDENTS", 10),
	shp.NumberField("JOBS", 10),
	shp.NumberField("CELL_X", 8),
	shp.NumberField("CELL_Y", 8),
	shp.StringField("TERRITORY", 40),
}

// WriteFootprints writes one polygon per building to a shapefile at path
// (with sibling .shx and .dbf files). Row order matches buildings.
func WriteFootprints(path string, buildings []*model.Building) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields(footprintFields)

	for _, b := range buildings {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{shapeRing(b.Footprint.Points())}))
		row := int(w.Write(&poly))

		cellX, cellY := -1, -1
		if b.GridCell != nil {
			cellX, cellY = b.GridCell.X, b.GridCell.Y
		}
		values := []any{b.ID, b.Category, b.Residents(), b.Jobs(), cellX, cellY, b.TerritoryID}
		for field, v := range values {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %d of building %s", field, b.ID)
			}
		}
	}
	return nil
}

// shapeRing converts a closed ring to shapefile points. Shapefile outer rings
// run clockwise.
func shapeRing(pts []geometry.LonLat) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i, p := range pts {
		out[i] = shp.Point{X: p.Lon, Y: p.Lat}
	}
	if ringArea(out) > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// ringArea is the signed shoelace area; positive means counter-clockwise.
func ringArea(pts []shp.Point) float64 {
	var sum float64
	for i := 0; i+1 < len(pts); i++ {
		sum += pts[i].X*pts[i+1].Y - pts[i+1].X*pts[i].Y
	}
	return sum / 2
}
