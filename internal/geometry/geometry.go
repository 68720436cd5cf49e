// Package geometry normalizes building footprints and holds the metric
// approximations the pipeline relies on. Coordinates are geographic
// longitude/latitude; distances are local approximations valid at city scale.
package geometry

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

// EarthRadiusMeters is the mean earth radius used for every metric conversion.
const EarthRadiusMeters = 6371008.8

// MetersPerDegree is the length of one degree of latitude (and of longitude at
// the equator) on a sphere of EarthRadiusMeters.
const MetersPerDegree = 2 * math.Pi * EarthRadiusMeters / 360

// SquareFeetPerSquareMeter converts footprint areas into the unit the density
// tables are expressed in.
const SquareFeetPerSquareMeter = 10.7639

// LonLat is a geographic position.
type LonLat struct {
	Lon float64
	Lat float64
}

// Coord returns the position as an XY go-geom coordinate.
func (p LonLat) Coord() geom.Coord {
	return geom.Coord{p.Lon, p.Lat}
}

// Array returns the position as [lon, lat].
func (p LonLat) Array() [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

func (p LonLat) finite() bool {
	return !math.IsNaN(p.Lon) && !math.IsNaN(p.Lat) && !math.IsInf(p.Lon, 0) && !math.IsInf(p.Lat, 0)
}

func (p LonLat) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b LonLat) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusMeters
}

// Along returns the point reached by walking meters from a towards b on the
// great circle through both. Walking past b continues on the same circle.
func Along(a, b LonLat, meters float64) LonLat {
	if meters == 0 || a == b {
		return a
	}
	pa := s2.PointFromLatLng(a.latLng())
	pb := s2.PointFromLatLng(b.latLng())
	p := s2.InterpolateAtDistance(s1.Angle(meters/EarthRadiusMeters), pa, pb)
	ll := s2.LatLngFromPoint(p)
	return LonLat{Lon: ll.Lng.Degrees(), Lat: ll.Lat.Degrees()}
}

// MetersToLatDegrees converts a north-south distance to degrees of latitude.
func MetersToLatDegrees(meters float64) float64 {
	return meters / MetersPerDegree
}

// PlanarArea returns the area of ring in square meters. The ring is projected
// onto a local equirectangular plane centred on its mean latitude.
func PlanarArea(ring *geom.LinearRing) float64 {
	if ring == nil || ring.NumCoords() < 4 {
		return 0
	}
	flat := ring.FlatCoords()
	n := ring.NumCoords() - 1 // closing vertex repeats the first

	var latSum float64
	for i := 0; i < n; i++ {
		latSum += flat[2*i+1]
	}
	lat0 := latSum / float64(n)
	lon0 := flat[0]
	kx := MetersPerDegree * math.Cos(lat0*math.Pi/180)

	projected := make([]float64, len(flat))
	for i := 0; i < len(flat); i += 2 {
		projected[i] = (flat[i] - lon0) * kx
		projected[i+1] = (flat[i+1] - lat0) * MetersPerDegree
	}
	return geom.NewLinearRingFlat(geom.XY, projected).Area()
}
