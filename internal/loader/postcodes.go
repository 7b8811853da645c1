// Package loader converts the raw published datasets into the typed
// entities the core operates on. Conversion happens here, at the
// boundary; nothing downstream ever sees an untyped row.
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

// NSPL column headers we consume. The file carries dozens more.
const (
	nsplPostcode = "pcd"
	nsplOA       = "oa21"
	nsplMSOA     = "msoa21"
	nsplLAD      = "laua"
	nsplLat      = "lat"
	nsplLon      = "long"
)

// LoadPostcodes reads a National Statistics Postcode Lookup CSV into
// typed Postcode records. Postcodes are stored space-stripped. Rows with
// an unparseable location keep their hierarchy codes and are flagged as
// location-less; the lookup data is still useful without coordinates.
func LoadPostcodes(path string) ([]models.Postcode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open postcodes csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("loader: read postcodes header: %w", err)
	}
	cols, err := columnIndex(header, nsplPostcode, nsplOA, nsplMSOA, nsplLAD, nsplLat, nsplLon)
	if err != nil {
		return nil, err
	}

	dataset := filepath.Base(path)
	var postcodes []models.Postcode
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: read postcodes row: %w", err)
		}

		pc := strings.ReplaceAll(row[cols[nsplPostcode]], " ", "")
		if pc == "" {
			continue
		}
		rec := models.Postcode{
			Postcode:      pc,
			OACode:        row[cols[nsplOA]],
			MSOACode:      row[cols[nsplMSOA]],
			LADCode:       row[cols[nsplLAD]],
			SourceDataset: dataset,
			Vintage:       "census-2021",
		}
		if len(pc) > 3 {
			rec.District = pc[:len(pc)-3]
		}

		lat, latErr := strconv.ParseFloat(row[cols[nsplLat]], 64)
		lon, lonErr := strconv.ParseFloat(row[cols[nsplLon]], 64)
		// NSPL marks postcodes without a grid reference with lat 99.999999.
		if latErr == nil && lonErr == nil && lat < 90 {
			rec.Location = models.WGS84(lat, lon)
			rec.HasLocation = true
		}

		postcodes = append(postcodes, rec)
	}

	log.Info().Int("postcodes", len(postcodes)).Str("file", dataset).Msg("loaded postcode lookup")
	return postcodes, nil
}

// columnIndex maps required header names to their positions.
func columnIndex(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		pos, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("loader: missing column %q", name)
		}
		out[name] = pos
	}
	return out, nil
}
