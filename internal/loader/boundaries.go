package loader

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"constituency-streets/internal/models"

	"github.com/rs/zerolog/log"
)

type geoJSONFeatureCollection struct {
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   geoJSONGeometry `json:"geometry"`
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadBoundaries reads one GeoJSON FeatureCollection of boundary polygons
// into admin units of the given kind. The ONS geoportal names its code
// and name properties per vintage (PCON22CD, LAD23CD, ...), so any
// property ending in CD/NM is accepted.
func LoadBoundaries(path string, kind models.UnitKind, vintage string) ([]models.AdminUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read boundaries: %w", err)
	}

	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("loader: parse boundaries geojson: %w", err)
	}

	dataset := filepath.Base(path)
	var units []models.AdminUnit
	for _, feat := range fc.Features {
		code, name := codeAndName(feat.Properties)
		if code == "" {
			log.Warn().Str("file", dataset).Msg("boundary feature without a code property, skipped")
			continue
		}
		polys, err := parseGeometry(feat.Geometry)
		if err != nil {
			log.Warn().Err(err).Str("code", code).Msg("boundary feature with unusable geometry, skipped")
			continue
		}
		units = append(units, models.AdminUnit{
			Code:          code,
			Kind:          kind,
			Name:          name,
			Boundary:      polys,
			SourceDataset: dataset,
			Vintage:       vintage,
		})
	}

	log.Info().Int("boundaries", len(units)).Str("file", dataset).Stringer("kind", kind).Msg("loaded boundary set")
	return units, nil
}

func codeAndName(props map[string]any) (code, name string) {
	for key, val := range props {
		s, ok := val.(string)
		if !ok {
			continue
		}
		upper := strings.ToUpper(key)
		switch {
		case strings.HasSuffix(upper, "CD") && code == "":
			code = s
		case strings.HasSuffix(upper, "NM") && name == "":
			name = s
		}
	}
	return code, name
}

func parseGeometry(g geoJSONGeometry) ([]models.Polygon, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("loader: polygon coordinates: %w", err)
		}
		poly, err := buildPolygon(rings)
		if err != nil {
			return nil, err
		}
		return []models.Polygon{poly}, nil
	case "MultiPolygon":
		var multi [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return nil, fmt.Errorf("loader: multipolygon coordinates: %w", err)
		}
		polys := make([]models.Polygon, 0, len(multi))
		for _, rings := range multi {
			poly, err := buildPolygon(rings)
			if err != nil {
				return nil, err
			}
			polys = append(polys, poly)
		}
		return polys, nil
	default:
		return nil, fmt.Errorf("loader: unsupported geometry type %q", g.Type)
	}
}

func buildPolygon(rings [][][]float64) (models.Polygon, error) {
	if len(rings) == 0 {
		return models.Polygon{}, fmt.Errorf("loader: polygon with no rings")
	}
	poly := models.Polygon{Rings: make([][]models.Point, len(rings))}
	for ri, ring := range rings {
		pts := make([]models.Point, len(ring))
		for pi, coord := range ring {
			if len(coord) < 2 {
				return models.Polygon{}, fmt.Errorf("loader: coordinate with fewer than 2 values")
			}
			pts[pi] = coordPoint(coord[0], coord[1])
		}
		poly.Rings[ri] = pts
	}
	poly.ComputeBBox()
	return poly, nil
}

// coordPoint tags each pair with its reference system. ONS publishes some
// boundary sets in WGS84 lon/lat and some in national-grid metres;
// anything outside degree range has to be easting/northing.
func coordPoint(x, y float64) models.Point {
	if math.Abs(x) > 180 || math.Abs(y) > 90 {
		return models.OSGB(x, y)
	}
	return models.WGS84(y, x)
}
