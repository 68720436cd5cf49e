package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Footprint is a normalized building outline: a closed ring with its derived
// bounding box and area centroid.
type Footprint struct {
	Ring     *geom.LinearRing
	BBox     BBox
	Centroid LonLat
}

// Points returns the ring vertices, closing vertex included.
func (f Footprint) Points() []LonLat {
	if f.Ring == nil {
		return nil
	}
	flat := f.Ring.FlatCoords()
	pts := make([]LonLat, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		pts = append(pts, LonLat{Lon: flat[i], Lat: flat[i+1]})
	}
	return pts
}

// Normalize turns a raw vertex list into a Footprint. It returns false when
// the input has fewer than three distinct finite vertices; such outlines are
// dropped by callers without raising an error.
func Normalize(points []LonLat) (Footprint, bool) {
	distinct := make(map[LonLat]struct{}, len(points))
	for _, p := range points {
		if !p.finite() {
			return Footprint{}, false
		}
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return Footprint{}, false
	}

	ring := make([]LonLat, len(points), len(points)+1)
	copy(ring, points)
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}

	bbox := EmptyBBox()
	flat := make([]float64, 0, 2*len(ring))
	for _, p := range ring {
		bbox.ExtendPoint(p)
		flat = append(flat, p.Lon, p.Lat)
	}

	return Footprint{
		Ring:     geom.NewLinearRingFlat(geom.XY, flat),
		BBox:     bbox,
		Centroid: clamp(areaCentroid(ring), bbox),
	}, true
}

// areaCentroid computes the signed-area centroid of a closed ring. Coordinates
// are taken relative to the first vertex to keep the cross products small.
// Rings with zero area fall back to the mean of their vertices.
func areaCentroid(ring []LonLat) LonLat {
	origin := ring[0]
	var area2, cx, cy float64
	for i := 0; i < len(ring)-1; i++ {
		x0, y0 := ring[i].Lon-origin.Lon, ring[i].Lat-origin.Lat
		x1, y1 := ring[i+1].Lon-origin.Lon, ring[i+1].Lat-origin.Lat
		cross := x0*y1 - x1*y0
		area2 += cross
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
	}
	if area2 == 0 {
		return vertexMean(ring[:len(ring)-1])
	}
	return LonLat{
		Lon: origin.Lon + cx/(3*area2),
		Lat: origin.Lat + cy/(3*area2),
	}
}

func vertexMean(pts []LonLat) LonLat {
	var lon, lat float64
	for _, p := range pts {
		lon += p.Lon
		lat += p.Lat
	}
	n := float64(len(pts))
	return LonLat{Lon: lon / n, Lat: lat / n}
}

// clamp keeps a centroid inside the ring's box; self-intersecting rings can
// place the signed-area centroid outside it.
func clamp(p LonLat, b BBox) LonLat {
	return LonLat{
		Lon: math.Min(math.Max(p.Lon, b.MinLon), b.MaxLon),
		Lat: math.Min(math.Max(p.Lat, b.MinLat), b.MaxLat),
	}
}
