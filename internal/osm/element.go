// Package osm holds the raw feature records supplied by the feature source
// (Overpass JSON elements) and reads/writes them as JSON arrays on disk.
package osm

import (
	"strconv"

	"github.com/sells-group/demand-cli/internal/geometry"
)

// Element types as reported by Overpass.
const (
	TypeNode     = "node"
	TypeWay      = "way"
	TypeRelation = "relation"
)

// Element is one raw feature. Buildings carry Geometry; places carry either a
// single Lat/Lon (nodes) or Bounds (ways and relations).
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Bounds   *Bounds           `json:"bounds,omitempty"`
	Geometry []Point           `json:"geometry,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// Bounds is the Overpass bounding box of a way or relation.
type Bounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

// Point is one vertex of an element geometry.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns the element id as a string.
func (e Element) Key() string {
	return strconv.FormatInt(e.ID, 10)
}

// Tag returns the tag value for key, or "" when absent.
func (e Element) Tag(key string) string {
	return e.Tags[key]
}

// HasTag reports whether key is present, even with an empty value.
func (e Element) HasTag(key string) bool {
	_, ok := e.Tags[key]
	return ok
}

// Vertices returns the geometry as lon/lat pairs.
func (e Element) Vertices() []geometry.LonLat {
	pts := make([]geometry.LonLat, len(e.Geometry))
	for i, p := range e.Geometry {
		pts[i] = geometry.LonLat{Lon: p.Lon, Lat: p.Lat}
	}
	return pts
}

// BBox returns the element's bounds, derived from its geometry when Overpass
// did not report them. The second result is false when neither is available.
func (e Element) BBox() (geometry.BBox, bool) {
	if e.Bounds != nil {
		return geometry.BBox{
			MinLon: e.Bounds.MinLon,
			MinLat: e.Bounds.MinLat,
			MaxLon: e.Bounds.MaxLon,
			MaxLat: e.Bounds.MaxLat,
		}, true
	}
	if len(e.Geometry) == 0 {
		return geometry.BBox{}, false
	}
	b := geometry.EmptyBBox()
	for _, p := range e.Vertices() {
		b.ExtendPoint(p)
	}
	return b, true
}
