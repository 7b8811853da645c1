package resolver

import (
	"context"
	"testing"

	"constituency-streets/internal/bridge"
	"constituency-streets/internal/geoindex"
	"constituency-streets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(code string, kind models.UnitKind, minLat, minLon, maxLat, maxLon float64) models.AdminUnit {
	poly := models.Polygon{Rings: [][]models.Point{{
		models.WGS84(minLat, minLon),
		models.WGS84(minLat, maxLon),
		models.WGS84(maxLat, maxLon),
		models.WGS84(maxLat, minLon),
		models.WGS84(minLat, minLon),
	}}}
	poly.ComputeBBox()
	return models.AdminUnit{Code: code, Kind: kind, Boundary: []models.Polygon{poly}}
}

func newTestResolver(t *testing.T, units []models.AdminUnit, oaUnits []models.AdminUnit, postcodes []models.Postcode) *Resolver {
	t.Helper()
	idx, err := geoindex.Build(units)
	require.NoError(t, err)
	br := bridge.New(bridge.NewMemoryLookup(postcodes, nil), idx, oaUnits, postcodes)
	return New(idx, br, 50)
}

func TestResolve_PointInsideConstituency(t *testing.T) {
	r := newTestResolver(t,
		[]models.AdminUnit{square("E14000001", models.KindConstituency, 0, 0, 10, 10)},
		nil,
		[]models.Postcode{{
			Postcode: "GU314AB", Location: models.WGS84(5, 5.1), HasLocation: true,
			OACode: "E00000001", Locality: "Zone A",
		}},
	)

	got := r.Resolve(models.StreetRecord{
		Name:       "Oak Road",
		SourceKind: models.SourceGazetteer,
		Point:      models.WGS84(5, 5),
	})

	require.Len(t, got, 1)
	assert.Equal(t, models.ResolvedStreet{
		StreetName:       "Oak Road",
		ConstituencyCode: "E14000001",
		Locality:         "Zone A",
	}, got[0])
}

func TestResolve_UnresolvedIsRetained(t *testing.T) {
	r := newTestResolver(t,
		[]models.AdminUnit{square("E14000001", models.KindConstituency, 0, 0, 10, 10)},
		nil, nil,
	)

	got := r.Resolve(models.StreetRecord{
		Name:       "Nowhere Lane",
		SourceKind: models.SourceGazetteer,
		Point:      models.WGS84(50, 50),
		Place:      "Lost Village",
	})

	require.Len(t, got, 1)
	assert.Empty(t, got[0].ConstituencyCode)
	assert.Equal(t, "Nowhere Lane", got[0].StreetName)
	assert.Equal(t, "Lost Village", got[0].Locality)
}

func TestResolve_HierarchyFallback(t *testing.T) {
	// The street sits in a gap no boundary claims, but a nearby postcode's
	// OA bridges it back to the constituency.
	r := newTestResolver(t,
		[]models.AdminUnit{square("E14000001", models.KindConstituency, 0, 0, 10, 10)},
		[]models.AdminUnit{{
			Code: "E00000001", Kind: models.KindOA,
			RepPoint: models.WGS84(9.9, 9.9), HasRepPoint: true,
		}},
		[]models.Postcode{{
			Postcode: "GU314AB", Location: models.WGS84(10.05, 10.05), HasLocation: true,
			OACode: "E00000001", Locality: "Edge Town",
		}},
	)

	got := r.Resolve(models.StreetRecord{
		Name:       "Gap Street",
		SourceKind: models.SourceGazetteer,
		Point:      models.WGS84(10.1, 10.1),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "E14000001", got[0].ConstituencyCode)
	assert.Equal(t, "Edge Town", got[0].Locality)
	assert.False(t, got[0].Split)
}

func TestResolve_SplitCenterline(t *testing.T) {
	r := newTestResolver(t,
		[]models.AdminUnit{
			square("E14000001", models.KindConstituency, 0, 0, 10, 10),
			square("E14000002", models.KindConstituency, 0, 10, 10, 20),
		},
		nil, nil,
	)

	got := r.Resolve(models.StreetRecord{
		Name:       "Border Road",
		SourceKind: models.SourceCenterline,
		Line:       models.Line{models.WGS84(5, 8), models.WGS84(5, 12)},
	})

	require.Len(t, got, 2)
	var codes []string
	for _, rs := range got {
		codes = append(codes, rs.ConstituencyCode)
		assert.True(t, rs.Split)
		assert.Equal(t, "Border Road", rs.StreetName)
	}
	assert.ElementsMatch(t, []string{"E14000001", "E14000002"}, codes)
}

func TestResolve_LocalityFallbackChain(t *testing.T) {
	tests := []struct {
		name     string
		postcode models.Postcode
		expected string
	}{
		{
			name:     "sector when no named locality",
			postcode: models.Postcode{Postcode: "GU314AB", Location: models.WGS84(5, 5.1), HasLocation: true},
			expected: "GU31 4",
		},
		{
			name:     "district when sector malformed",
			postcode: models.Postcode{Postcode: "GU3", District: "GU3", Location: models.WGS84(5, 5.1), HasLocation: true},
			expected: "GU3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t,
				[]models.AdminUnit{square("E14000001", models.KindConstituency, 0, 0, 10, 10)},
				nil,
				[]models.Postcode{tt.postcode},
			)

			got := r.Resolve(models.StreetRecord{
				Name:       "Plain Street",
				SourceKind: models.SourceGazetteer,
				Point:      models.WGS84(5, 5),
			})

			require.Len(t, got, 1)
			assert.Equal(t, tt.expected, got[0].Locality)
		})
	}
}

func TestResolveAll(t *testing.T) {
	r := newTestResolver(t,
		[]models.AdminUnit{square("E14000001", models.KindConstituency, 0, 0, 10, 10)},
		nil, nil,
	)

	records := make([]models.StreetRecord, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, models.StreetRecord{
			Name:       "Pool Street",
			SourceKind: models.SourceGazetteer,
			Point:      models.WGS84(5, 5),
		})
	}

	got := r.ResolveAll(context.Background(), records, 4)

	assert.Len(t, got, 20)
	for _, rs := range got {
		assert.Equal(t, "E14000001", rs.ConstituencyCode)
	}
}
