package geoindex

import "constituency-streets/internal/models"

// Ray-casting containment tests with a bounding-box prefilter. A point is
// inside a polygon when it falls inside the outer ring and outside every
// hole.

func pointInPolygon(pt models.Point, poly models.Polygon) bool {
	if len(poly.Rings) == 0 {
		return false
	}
	if !inBBox(pt, poly.BBox) {
		return false
	}
	if !pointInRing(pt, poly.Rings[0]) {
		return false
	}
	for i := 1; i < len(poly.Rings); i++ {
		if pointInRing(pt, poly.Rings[i]) {
			return false
		}
	}
	return true
}

func pointInRing(pt models.Point, ring []models.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.X, pt.Y
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		if ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi) {
			inside = !inside
		}
	}
	return inside
}

func inBBox(pt models.Point, b [4]float64) bool {
	return pt.X >= b[0] && pt.X <= b[2] && pt.Y >= b[1] && pt.Y <= b[3]
}

// lineIntersectsPolygon reports whether any vertex of the line lies inside
// the polygon or any line segment crosses a ring edge. Either condition
// means the road touches the unit.
func lineIntersectsPolygon(line []models.Point, poly models.Polygon) bool {
	for _, pt := range line {
		if pointInPolygon(pt, poly) {
			return true
		}
	}
	for i := 0; i+1 < len(line); i++ {
		for _, ring := range poly.Rings {
			n := len(ring)
			for j := 0; j < n; j++ {
				if segmentsCross(line[i], line[i+1], ring[j], ring[(j+1)%n]) {
					return true
				}
			}
		}
	}
	return false
}

// segmentsCross is a proper-intersection test via orientation signs.
// Collinear touching is treated as a miss; a road running exactly along a
// boundary edge is claimed by the containment test on its vertices instead.
func segmentsCross(a, b, c, d models.Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}

func orient(a, b, c models.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
