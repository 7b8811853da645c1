package models

import "math"

// CRS identifies the coordinate reference system a coordinate pair is
// expressed in. Boundary and gazetteer datasets arrive in the OSGB36
// national grid (easting/northing metres) while postcode centroids arrive
// in WGS84 decimal degrees; everything is normalised to WGS84 before any
// spatial comparison.
type CRS int

const (
	CRSWGS84 CRS = iota // X = longitude, Y = latitude
	CRSOSGB36           // X = easting, Y = northing
)

// Point is a single coordinate pair tagged with its reference system.
type Point struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	CRS CRS     `json:"-"`
}

// WGS84 builds a point from decimal-degree latitude and longitude.
func WGS84(lat, lon float64) Point {
	return Point{X: lon, Y: lat, CRS: CRSWGS84}
}

// OSGB builds a point from national-grid easting and northing.
func OSGB(easting, northing float64) Point {
	return Point{X: easting, Y: northing, CRS: CRSOSGB36}
}

// Lat returns the latitude of a WGS84 point.
func (p Point) Lat() float64 { return p.Y }

// Lon returns the longitude of a WGS84 point.
func (p Point) Lon() float64 { return p.X }

// Polygon is a ring set in GeoJSON order: the first ring is the outer
// boundary, any further rings are holes. The bounding box is kept
// alongside for cheap prefiltering.
type Polygon struct {
	Rings [][]Point
	BBox  [4]float64 // minX, minY, maxX, maxY
}

// ComputeBBox recalculates the bounding box from the outer ring.
func (p *Polygon) ComputeBBox() {
	if len(p.Rings) == 0 || len(p.Rings[0]) == 0 {
		return
	}
	b := [4]float64{math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	for _, pt := range p.Rings[0] {
		b[0] = math.Min(b[0], pt.X)
		b[1] = math.Min(b[1], pt.Y)
		b[2] = math.Max(b[2], pt.X)
		b[3] = math.Max(b[3], pt.Y)
	}
	p.BBox = b
}

// Centroid returns the arithmetic mean of the outer ring vertices. Good
// enough as a representative point for nearest-neighbour ranking; exact
// area-weighted centroids are not needed for that purpose.
func (p Polygon) Centroid() Point {
	if len(p.Rings) == 0 || len(p.Rings[0]) == 0 {
		return Point{}
	}
	outer := p.Rings[0]
	// Closing vertex duplicates the first; skip it if present.
	n := len(outer)
	if n > 1 && outer[0] == outer[n-1] {
		outer = outer[:n-1]
		n--
	}
	var sx, sy float64
	for _, pt := range outer {
		sx += pt.X
		sy += pt.Y
	}
	return Point{X: sx / float64(n), Y: sy / float64(n), CRS: outer[0].CRS}
}

// Line is an ordered sequence of vertices forming a road centerline.
type Line []Point
