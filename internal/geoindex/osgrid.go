package geoindex

import (
	"math"

	"constituency-streets/internal/models"
)

// OSGB36 national grid to WGS84 conversion: inverse transverse Mercator
// on the Airy 1830 ellipsoid followed by a Helmert transformation. This
// is the standard OS algorithm; accuracy is within a few metres, which is
// far below the scale of any boundary polygon involved.

const (
	airyA  = 6377563.396
	airyB  = 6356256.909
	grs80A = 6378137.000
	grs80B = 6356752.3141

	scaleF0 = 0.9996012717
	lat0    = 49.0 * math.Pi / 180
	lon0    = -2.0 * math.Pi / 180
	north0  = -100000.0
	east0   = 400000.0
)

// ToWGS84 normalises a point to WGS84. WGS84 inputs pass through.
func ToWGS84(p models.Point) models.Point {
	if p.CRS == models.CRSWGS84 {
		return p
	}
	lat, lon := gridToLatLon(p.X, p.Y)
	return models.WGS84(lat, lon)
}

// gridToLatLon converts easting/northing to WGS84 latitude/longitude in
// decimal degrees.
func gridToLatLon(e, n float64) (float64, float64) {
	e2 := (airyA*airyA - airyB*airyB) / (airyA * airyA)
	nr := (airyA - airyB) / (airyA + airyB)

	lat := lat0
	m := 0.0
	for {
		lat = (n-north0-m)/(airyA*scaleF0) + lat
		m = meridionalArc(lat, nr)
		if math.Abs(n-north0-m) < 1e-5 {
			break
		}
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	tanLat := math.Tan(lat)
	nu := airyA * scaleF0 / math.Sqrt(1-e2*sinLat*sinLat)
	rho := airyA * scaleF0 * (1 - e2) / math.Pow(1-e2*sinLat*sinLat, 1.5)
	eta2 := nu/rho - 1

	t2 := tanLat * tanLat
	vii := tanLat / (2 * rho * nu)
	viii := tanLat / (24 * rho * nu * nu * nu) * (5 + 3*t2 + eta2 - 9*t2*eta2)
	ix := tanLat / (720 * rho * math.Pow(nu, 5)) * (61 + 90*t2 + 45*t2*t2)
	x := 1 / (cosLat * nu)
	xi := 1 / (cosLat * 6 * nu * nu * nu) * (nu/rho + 2*t2)
	xii := 1 / (cosLat * 120 * math.Pow(nu, 5)) * (5 + 28*t2 + 24*t2*t2)
	xiia := 1 / (cosLat * 5040 * math.Pow(nu, 7)) * (61 + 662*t2 + 1320*t2*t2 + 720*t2*t2*t2)

	de := e - east0
	latOS := lat - vii*de*de + viii*math.Pow(de, 4) - ix*math.Pow(de, 6)
	lonOS := lon0 + x*de - xi*de*de*de + xii*math.Pow(de, 5) - xiia*math.Pow(de, 7)

	return helmertToWGS84(latOS, lonOS)
}

func meridionalArc(lat, nr float64) float64 {
	n2 := nr * nr
	n3 := n2 * nr
	dLat := lat - lat0
	sLat := lat + lat0
	ma := (1 + nr + 1.25*n2 + 1.25*n3) * dLat
	mb := (3*nr + 3*n2 + 2.625*n3) * math.Sin(dLat) * math.Cos(sLat)
	mc := (1.875*n2 + 1.875*n3) * math.Sin(2*dLat) * math.Cos(2*sLat)
	md := (35.0 / 24.0) * n3 * math.Sin(3*dLat) * math.Cos(3*sLat)
	return airyB * scaleF0 * (ma - mb + mc - md)
}

// helmertToWGS84 applies the OSGB36 to WGS84 datum shift.
func helmertToWGS84(lat, lon float64) (float64, float64) {
	// Geodetic to cartesian on Airy 1830.
	e2 := (airyA*airyA - airyB*airyB) / (airyA * airyA)
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	nu := airyA / math.Sqrt(1-e2*sinLat*sinLat)
	x := nu * cosLat * math.Cos(lon)
	y := nu * cosLat * math.Sin(lon)
	z := (1 - e2) * nu * sinLat

	// Helmert parameters OSGB36 -> WGS84.
	const (
		tx = 446.448
		ty = -125.157
		tz = 542.060
		s  = -20.4894e-6
		rx = 0.1502 / 3600 * math.Pi / 180
		ry = 0.2470 / 3600 * math.Pi / 180
		rz = 0.8421 / 3600 * math.Pi / 180
	)
	x2 := tx + (1+s)*x - rz*y + ry*z
	y2 := ty + rz*x + (1+s)*y - rx*z
	z2 := tz - ry*x + rx*y + (1+s)*z

	// Cartesian back to geodetic on GRS80, iterating latitude.
	e2b := (grs80A*grs80A - grs80B*grs80B) / (grs80A * grs80A)
	p := math.Sqrt(x2*x2 + y2*y2)
	latW := math.Atan2(z2, p*(1-e2b))
	for i := 0; i < 10; i++ {
		sin := math.Sin(latW)
		nu := grs80A / math.Sqrt(1-e2b*sin*sin)
		next := math.Atan2(z2+e2b*nu*sin, p)
		if math.Abs(next-latW) < 1e-12 {
			latW = next
			break
		}
		latW = next
	}
	lonW := math.Atan2(y2, x2)

	return latW * 180 / math.Pi, lonW * 180 / math.Pi
}
