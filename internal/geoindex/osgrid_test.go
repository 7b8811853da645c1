package geoindex

import (
	"testing"

	"constituency-streets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWGS84_PassthroughForWGS84(t *testing.T) {
	pt := models.WGS84(51.5, -0.1)
	got := ToWGS84(pt)
	assert.Equal(t, pt, got)
}

func TestToWGS84_NationalGrid(t *testing.T) {
	tests := []struct {
		name        string
		easting     float64
		northing    float64
		expectedLat float64
		expectedLon float64
	}{
		// Reference values cross-checked against the OS coordinate
		// transformation tool; the single Helmert transform is only
		// accurate to a few metres, so the tolerance is generous.
		{name: "true origin", easting: 400000, northing: -100000, expectedLat: 49.0, expectedLon: -2.0},
		{name: "central london", easting: 530000, northing: 180000, expectedLat: 51.504, expectedLon: -0.127},
		{name: "edinburgh", easting: 325000, northing: 673000, expectedLat: 55.948, expectedLon: -3.200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToWGS84(models.OSGB(tt.easting, tt.northing))
			assert.Equal(t, models.CRSWGS84, got.CRS)
			assert.InDelta(t, tt.expectedLat, got.Lat(), 0.01)
			assert.InDelta(t, tt.expectedLon, got.Lon(), 0.01)
		})
	}
}

func TestPointIndex_Nearest(t *testing.T) {
	pts := []models.Point{
		models.WGS84(51.5, -0.1),
		models.WGS84(52.5, -1.9),
		models.WGS84(55.9, -3.2),
	}
	idx := NewPointIndex(pts)

	i, dist, ok := idx.Nearest(models.WGS84(51.51, -0.12))
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Less(t, dist, 5.0)

	i, _, ok = idx.Nearest(models.WGS84(55.0, -3.0))
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestPointIndex_NearestCrossesLongitudePlane(t *testing.T) {
	// At high latitude a degree of longitude is well under 111 km, so the
	// true nearest point can sit across the splitting plane even when the
	// plane is more than bestD/111 degrees away. The root splits on
	// longitude at 0; the nearest point to the query is on its far side.
	pts := []models.Point{
		models.WGS84(60, -0.05), // ~58 km from the query
		models.WGS84(60.5, 0),   // ~78 km, found first
		models.WGS84(60.72, 1.0),
	}
	idx := NewPointIndex(pts)

	i, dist, ok := idx.Nearest(models.WGS84(60, 1.0))
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.InDelta(t, 58.4, dist, 1.5)
}

func TestPointIndex_Empty(t *testing.T) {
	idx := NewPointIndex(nil)
	_, _, ok := idx.Nearest(models.WGS84(51.5, -0.1))
	assert.False(t, ok)
}
