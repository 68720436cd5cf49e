// Package territory splits a region into neighborhood territories and assigns
// buildings to them.
package territory

import (
	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/osm"
)

// Place tag values that make a feature a neighborhood anchor.
var placeKinds = map[string]bool{
	"neighbourhood": true,
	"quarter":       true,
}

// Anchor is the representative point of a named place.
type Anchor struct {
	ID    string
	Name  string
	Point geometry.LonLat
}

// AnchorOptions controls which place features become anchors.
type AnchorOptions struct {
	// IncludeAmenities adds amenity features as extra sites. They densify the
	// tessellation and are not treated as a separate kind of territory.
	IncludeAmenities bool
}

// Anchors derives one anchor per qualifying place feature, in input order.
// Nodes use their coordinate; ways and relations use the midpoint of their
// bounding box. Features without a usable position are skipped, as are
// repeated ids.
func Anchors(elems []osm.Element, opts AnchorOptions) []Anchor {
	seen := make(map[string]bool, len(elems))
	var out []Anchor
	for _, e := range elems {
		if !isAnchor(e, opts) {
			continue
		}
		id := e.Type + "/" + e.Key()
		if seen[id] {
			continue
		}
		p, ok := anchorPoint(e)
		if !ok {
			continue
		}
		seen[id] = true
		out = append(out, Anchor{ID: id, Name: e.Tag("name"), Point: p})
	}
	return out
}

func isAnchor(e osm.Element, opts AnchorOptions) bool {
	if placeKinds[e.Tag("place")] {
		return true
	}
	return opts.IncludeAmenities && e.Tag("amenity") != ""
}

func anchorPoint(e osm.Element) (geometry.LonLat, bool) {
	if e.Type == osm.TypeNode {
		return geometry.LonLat{Lon: e.Lon, Lat: e.Lat}, true
	}
	b, ok := e.BBox()
	if !ok {
		return geometry.LonLat{}, false
	}
	return b.Center(), true
}
