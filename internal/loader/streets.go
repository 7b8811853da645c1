package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"constituency-streets/internal/models"

	"github.com/rs/zerolog/log"
)

// OS Open Names column headers we consume.
const (
	openNamesName      = "name1"
	openNamesLocalType = "local_type"
	openNamesEasting   = "geometry_x"
	openNamesNorthing  = "geometry_y"
	openNamesDistrict  = "postcode_district"
	openNamesPlace     = "populated_place"
)

// LoadStreets reads OS Open Names rows into street records, keeping only
// road entries (the gazetteer also carries hills, woods and so on). The
// geometry is a single national-grid point per named road.
func LoadStreets(path string) ([]models.StreetRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open streets csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("loader: read streets header: %w", err)
	}
	cols, err := columnIndex(header, openNamesName, openNamesLocalType, openNamesEasting, openNamesNorthing, openNamesDistrict, openNamesPlace)
	if err != nil {
		return nil, err
	}

	dataset := filepath.Base(path)
	var streets []models.StreetRecord
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: read streets row: %w", err)
		}

		if !strings.Contains(row[cols[openNamesLocalType]], "Road") {
			continue
		}
		easting, eErr := strconv.ParseFloat(row[cols[openNamesEasting]], 64)
		northing, nErr := strconv.ParseFloat(row[cols[openNamesNorthing]], 64)
		if eErr != nil || nErr != nil {
			skipped++
			continue
		}

		streets = append(streets, models.StreetRecord{
			Name:          row[cols[openNamesName]],
			SourceKind:    models.SourceGazetteer,
			Point:         models.OSGB(easting, northing),
			District:      strings.ReplaceAll(row[cols[openNamesDistrict]], " ", ""),
			Place:         row[cols[openNamesPlace]],
			SourceDataset: dataset,
			Vintage:       "os-opennames",
		})
	}

	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("road rows without a usable grid reference")
	}
	log.Info().Int("streets", len(streets)).Str("file", dataset).Msg("loaded street gazetteer")
	return streets, nil
}
