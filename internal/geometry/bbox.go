package geometry

import "math"

// BBox is an axis-aligned geographic bounding box.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// EmptyBBox returns a box that contains nothing and grows on the first Extend.
func EmptyBBox() BBox {
	return BBox{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
}

// BBoxFromArray builds a box from [minLon, minLat, maxLon, maxLat].
func BBoxFromArray(a [4]float64) BBox {
	return BBox{MinLon: a[0], MinLat: a[1], MaxLon: a[2], MaxLat: a[3]}
}

// Array returns the box as [minLon, minLat, maxLon, maxLat].
func (b BBox) Array() [4]float64 {
	return [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// IsEmpty reports whether the box contains no points.
func (b BBox) IsEmpty() bool {
	return b.MinLon > b.MaxLon || b.MinLat > b.MaxLat
}

// ExtendPoint grows the box to include p.
func (b *BBox) ExtendPoint(p LonLat) {
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
}

// Extend grows the box to include o.
func (b *BBox) Extend(o BBox) {
	if o.IsEmpty() {
		return
	}
	b.ExtendPoint(LonLat{Lon: o.MinLon, Lat: o.MinLat})
	b.ExtendPoint(LonLat{Lon: o.MaxLon, Lat: o.MaxLat})
}

// Contains reports whether p lies inside or on the edge of the box.
func (b BBox) Contains(p LonLat) bool {
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// Center returns the midpoint of the box.
func (b BBox) Center() LonLat {
	return LonLat{Lon: (b.MinLon + b.MaxLon) / 2, Lat: (b.MinLat + b.MaxLat) / 2}
}

// Min returns the south-west corner.
func (b BBox) Min() [2]float64 { return [2]float64{b.MinLon, b.MinLat} }

// Max returns the north-east corner.
func (b BBox) Max() [2]float64 { return [2]float64{b.MaxLon, b.MaxLat} }
