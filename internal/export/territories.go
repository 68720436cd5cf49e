package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/demand-cli/internal/model"
)

// SRID of every exported geometry.
const SRID = 4326

// TerritoryCollection builds a GeoJSON FeatureCollection with one polygon per
// territory and its totals as properties.
func TerritoryCollection(territories []*model.Territory) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(territories))}
	for _, t := range territories {
		f := &geojson.Feature{
			ID: t.ID,
			Properties: map[string]any{
				"name":      t.Name,
				"anchor":    t.Anchor.Array(),
				"residents": t.Population,
				"jobs":      t.Jobs,
				"buildings": len(t.BuildingIDs),
			},
		}
		if t.Ring != nil {
			f.Geometry = polygon(t.Ring)
		}
		fc.Features = append(fc.Features, f)
	}
	return fc
}

// WriteTerritories writes TerritoryCollection to path.
func WriteTerritories(path string, territories []*model.Territory) error {
	data, err := json.Marshal(TerritoryCollection(territories))
	if err != nil {
		return eris.Wrap(err, "export: marshal territories")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// PolygonEWKB encodes ring as a little-endian EWKB polygon with SRID 4326.
// A nil ring encodes to nil.
func PolygonEWKB(ring *geom.LinearRing) ([]byte, error) {
	if ring == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(polygon(ring).SetSRID(SRID), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "export: encode EWKB")
	}
	return data, nil
}

func polygon(ring *geom.LinearRing) *geom.Polygon {
	flat := ring.FlatCoords()
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}
