package overpass

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/language"

	"github.com/sells-group/demand-cli/internal/geometry"
)

// RoadClasses maps the fetched highway values to the simulation's classes.
var RoadClasses = map[string]string{
	"motorway":    "highway",
	"trunk":       "major",
	"primary":     "major",
	"secondary":   "minor",
	"tertiary":    "minor",
	"residential": "minor",
}

const roadsQL = `way["highway"~"^(motorway|trunk|primary|secondary|tertiary|residential)$"]({{bbox}});`

// Roads returns the region's road network as LineString features with
// roadClass, structure and name properties. Names prefer the locale's
// language.
func (c *Client) Roads(ctx context.Context, bbox geometry.BBox, locale string) (*geojson.FeatureCollection, error) {
	lang := LocaleLanguage(locale)
	res, err := c.query(ctx, "roads", roadsQL, bbox)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: roads")
	}

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, w := range sortedWays(res) {
		class, ok := RoadClasses[w.Tags["highway"]]
		if !ok {
			continue
		}
		flat := make([]float64, 0, 2*len(w.Nodes))
		for _, n := range w.Nodes {
			if n != nil {
				flat = append(flat, n.Lon, n.Lat)
			}
		}
		if len(flat) < 4 {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       wayKey(w),
			Geometry: geom.NewLineStringFlat(geom.XY, flat),
			Properties: map[string]any{
				"roadClass": class,
				"structure": "normal",
				"name":      StreetName(w.Tags, lang),
			},
		})
	}
	return fc, nil
}

// LocaleLanguage returns the base language of a BCP 47 locale such as
// "fr-CA", or "en" when the locale does not parse.
func LocaleLanguage(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

// StreetName picks name:<lang>, then name, then ref. Roads tagged noname=yes
// are unnamed.
func StreetName(tags map[string]string, lang string) string {
	if tags["noname"] == "yes" {
		return ""
	}
	for _, key := range []string{"name:" + lang, "name", "ref"} {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v
		}
	}
	return ""
}
