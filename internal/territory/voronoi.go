package territory

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/demand-cli/internal/geometry"
)

// Reasons a tessellation cell could not be generated.
const (
	ReasonDuplicateSite = "duplicate site"
	ReasonEmptyCell     = "empty cell"
	ReasonEmptyBBox     = "empty bounding box"
)

// minCellArea is the smallest cell, in square degrees, treated as a polygon.
const minCellArea = 1e-18

// Cell is one anchor's tessellation result: either Available or Unavailable.
type Cell interface {
	AnchorID() string
	cell()
}

// Available is a generated cell. Ring is closed and counter-clockwise.
type Available struct {
	Anchor Anchor
	Ring   *geom.LinearRing
	Bounds geometry.BBox
}

// Unavailable marks an anchor whose cell could not be generated. Its
// buildings are left out of every territory.
type Unavailable struct {
	Anchor Anchor
	Reason string
}

func (c Available) AnchorID() string   { return c.Anchor.ID }
func (c Unavailable) AnchorID() string { return c.Anchor.ID }

func (Available) cell()   {}
func (Unavailable) cell() {}

// Tessellate computes the Voronoi cell of every anchor inside bbox. The result
// has one entry per anchor, in anchor order. Distances are planar in lon/lat.
//
// Each cell is the bbox clipped by the perpendicular bisector half-plane
// towards every other site. When several anchors share a coordinate the first
// one owns the cell and the rest are Unavailable.
func Tessellate(bbox geometry.BBox, anchors []Anchor) []Cell {
	cells := make([]Cell, len(anchors))
	if bbox.IsEmpty() || bbox.MinLon == bbox.MaxLon || bbox.MinLat == bbox.MaxLat {
		for i, a := range anchors {
			cells[i] = Unavailable{Anchor: a, Reason: ReasonEmptyBBox}
		}
		return cells
	}

	// Distinct sites, first occurrence wins.
	owner := make(map[geometry.LonLat]int, len(anchors))
	sites := make([]geometry.LonLat, 0, len(anchors))
	for i, a := range anchors {
		if _, dup := owner[a.Point]; dup {
			cells[i] = Unavailable{Anchor: a, Reason: ReasonDuplicateSite}
			continue
		}
		owner[a.Point] = i
		sites = append(sites, a.Point)
	}

	for i, a := range anchors {
		if cells[i] != nil {
			continue
		}
		poly := []geometry.LonLat{
			{Lon: bbox.MinLon, Lat: bbox.MinLat},
			{Lon: bbox.MaxLon, Lat: bbox.MinLat},
			{Lon: bbox.MaxLon, Lat: bbox.MaxLat},
			{Lon: bbox.MinLon, Lat: bbox.MaxLat},
		}
		for _, s := range sites {
			if s == a.Point {
				continue
			}
			poly = clipBisector(poly, a.Point, s)
			if len(poly) < 3 {
				break
			}
		}
		cells[i] = newCell(a, poly)
	}
	return cells
}

func newCell(a Anchor, poly []geometry.LonLat) Cell {
	if len(poly) < 3 || math.Abs(signedArea(poly)) < minCellArea {
		return Unavailable{Anchor: a, Reason: ReasonEmptyCell}
	}
	bounds := geometry.EmptyBBox()
	flat := make([]float64, 0, 2*len(poly)+2)
	for _, p := range poly {
		bounds.ExtendPoint(p)
		flat = append(flat, p.Lon, p.Lat)
	}
	flat = append(flat, poly[0].Lon, poly[0].Lat)
	return Available{
		Anchor: a,
		Ring:   geom.NewLinearRingFlat(geom.XY, flat),
		Bounds: bounds,
	}
}

// clipBisector keeps the part of the convex polygon poly that is at least as
// close to site as to other (Sutherland-Hodgman against one half-plane).
func clipBisector(poly []geometry.LonLat, site, other geometry.LonLat) []geometry.LonLat {
	mid := geometry.LonLat{Lon: (site.Lon + other.Lon) / 2, Lat: (site.Lat + other.Lat) / 2}
	dx, dy := other.Lon-site.Lon, other.Lat-site.Lat
	side := func(p geometry.LonLat) float64 {
		return (p.Lon-mid.Lon)*dx + (p.Lat-mid.Lat)*dy
	}

	out := make([]geometry.LonLat, 0, len(poly)+1)
	for k, cur := range poly {
		prev := poly[(k+len(poly)-1)%len(poly)]
		fc, fp := side(cur), side(prev)
		switch {
		case fc <= 0 && fp > 0:
			out = append(out, crossing(prev, cur, fp, fc), cur)
		case fc <= 0:
			out = append(out, cur)
		case fp <= 0:
			out = append(out, crossing(prev, cur, fp, fc))
		}
	}
	return dedupe(out)
}

func crossing(a, b geometry.LonLat, fa, fb float64) geometry.LonLat {
	t := fa / (fa - fb)
	return geometry.LonLat{Lon: a.Lon + t*(b.Lon-a.Lon), Lat: a.Lat + t*(b.Lat-a.Lat)}
}

// dedupe drops consecutive repeated vertices left by clipping through a corner.
func dedupe(poly []geometry.LonLat) []geometry.LonLat {
	out := poly[:0]
	for i, p := range poly {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

func signedArea(poly []geometry.LonLat) float64 {
	var sum float64
	for k, p := range poly {
		q := poly[(k+1)%len(poly)]
		sum += p.Lon*q.Lat - q.Lon*p.Lat
	}
	return sum / 2
}
