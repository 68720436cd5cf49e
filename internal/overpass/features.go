package overpass

import (
	"cmp"
	"context"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	op "github.com/serjvanilla/go-overpass"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/osm"
)

const buildingsQL = `way["building"]({{bbox}});`

const placesQL = `nwr["place"="neighbourhood"]({{bbox}});
nwr["place"="quarter"]({{bbox}});
nwr["amenity"]({{bbox}});`

// Buildings returns every building way inside bbox with its outline, ordered
// by id.
func (c *Client) Buildings(ctx context.Context, bbox geometry.BBox) ([]osm.Element, error) {
	res, err := c.query(ctx, "buildings", buildingsQL, bbox)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: buildings")
	}
	var out []osm.Element
	for _, w := range sortedWays(res) {
		if _, ok := w.Tags["building"]; !ok {
			continue
		}
		out = append(out, wayElement(w))
	}
	return out, nil
}

// Places returns neighbourhood, quarter and amenity features inside bbox:
// nodes first, then ways, then relations, each ordered by id. A relation's
// bounds cover the member nodes and ways that the recurse step returned.
func (c *Client) Places(ctx context.Context, bbox geometry.BBox) ([]osm.Element, error) {
	res, err := c.query(ctx, "places", placesQL, bbox)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: places")
	}
	var out []osm.Element
	for _, n := range sortedNodes(res) {
		if isPlace(n.Tags) {
			out = append(out, osm.Element{
				Type: osm.TypeNode,
				ID:   n.ID,
				Lat:  n.Lat,
				Lon:  n.Lon,
				Tags: n.Tags,
			})
		}
	}
	for _, w := range sortedWays(res) {
		if isPlace(w.Tags) {
			out = append(out, wayElement(w))
		}
	}
	for _, r := range sortedRelations(res) {
		if !isPlace(r.Tags) {
			continue
		}
		if e, ok := relationElement(r); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func isPlace(tags map[string]string) bool {
	switch tags["place"] {
	case "neighbourhood", "quarter":
		return true
	}
	return tags["amenity"] != ""
}

// wayElement converts a way whose member nodes carry coordinates.
func wayElement(w *op.Way) osm.Element {
	e := osm.Element{
		Type:     osm.TypeWay,
		ID:       w.ID,
		Tags:     w.Tags,
		Geometry: make([]osm.Point, 0, len(w.Nodes)),
	}
	for _, n := range w.Nodes {
		if n == nil {
			continue
		}
		e.Geometry = append(e.Geometry, osm.Point{Lat: n.Lat, Lon: n.Lon})
	}
	if w.Bounds != nil {
		e.Bounds = &osm.Bounds{
			MinLat: w.Bounds.Min.Lat,
			MinLon: w.Bounds.Min.Lon,
			MaxLat: w.Bounds.Max.Lat,
			MaxLon: w.Bounds.Max.Lon,
		}
	}
	return e
}

// relationElement converts a relation into an element carrying only its
// bounds. Relations whose members resolved to no coordinates are skipped.
func relationElement(r *op.Relation) (osm.Element, bool) {
	b := geometry.EmptyBBox()
	if r.Bounds != nil {
		b.ExtendPoint(geometry.LonLat{Lon: r.Bounds.Min.Lon, Lat: r.Bounds.Min.Lat})
		b.ExtendPoint(geometry.LonLat{Lon: r.Bounds.Max.Lon, Lat: r.Bounds.Max.Lat})
	} else {
		extendMembers(&b, r, map[int64]bool{})
	}
	if b.IsEmpty() {
		return osm.Element{}, false
	}
	return osm.Element{
		Type: osm.TypeRelation,
		ID:   r.ID,
		Tags: r.Tags,
		Bounds: &osm.Bounds{
			MinLat: b.MinLat,
			MinLon: b.MinLon,
			MaxLat: b.MaxLat,
			MaxLon: b.MaxLon,
		},
	}, true
}

// extendMembers grows b by every resolved member of r, descending into
// sub-relations once each.
func extendMembers(b *geometry.BBox, r *op.Relation, seen map[int64]bool) {
	if seen[r.ID] {
		return
	}
	seen[r.ID] = true
	for _, m := range r.Members {
		switch {
		case m.Node != nil:
			extendNode(b, m.Node)
		case m.Way != nil:
			if m.Way.Bounds != nil {
				b.ExtendPoint(geometry.LonLat{Lon: m.Way.Bounds.Min.Lon, Lat: m.Way.Bounds.Min.Lat})
				b.ExtendPoint(geometry.LonLat{Lon: m.Way.Bounds.Max.Lon, Lat: m.Way.Bounds.Max.Lat})
				continue
			}
			for _, n := range m.Way.Nodes {
				extendNode(b, n)
			}
		case m.Relation != nil:
			extendMembers(b, m.Relation, seen)
		}
	}
}

// extendNode skips placeholder nodes that were referenced but never returned.
func extendNode(b *geometry.BBox, n *op.Node) {
	if n == nil || (n.Lat == 0 && n.Lon == 0) {
		return
	}
	b.ExtendPoint(geometry.LonLat{Lon: n.Lon, Lat: n.Lat})
}

func sortedNodes(res op.Result) []*op.Node {
	nodes := make([]*op.Node, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *op.Node) int { return cmp.Compare(a.ID, b.ID) })
	return nodes
}

func sortedWays(res op.Result) []*op.Way {
	ways := make([]*op.Way, 0, len(res.Ways))
	for _, w := range res.Ways {
		ways = append(ways, w)
	}
	slices.SortFunc(ways, func(a, b *op.Way) int { return cmp.Compare(a.ID, b.ID) })
	return ways
}

func sortedRelations(res op.Result) []*op.Relation {
	rels := make([]*op.Relation, 0, len(res.Relations))
	for _, r := range res.Relations {
		rels = append(rels, r)
	}
	slices.SortFunc(rels, func(a, b *op.Relation) int { return cmp.Compare(a.ID, b.ID) })
	return rels
}

func wayKey(w *op.Way) string {
	return osm.TypeWay + "/" + strconv.FormatInt(w.ID, 10)
}
