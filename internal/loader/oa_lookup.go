package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// OA lookup column headers (OA to LSOA to MSOA to LAD lookup, 2021).
const (
	oaLookupOA   = "oa21cd"
	oaLookupMSOA = "msoa21cd"
	oaLookupLAD  = "lad22cd"
)

// OAHierarchyRow is one row of the authoritative OA lookup table.
type OAHierarchyRow struct {
	OA   string
	MSOA string
	LAD  string
}

// LoadOAHierarchy reads the ONS OA-to-MSOA-to-LAD lookup CSV.
func LoadOAHierarchy(path string) ([]OAHierarchyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open oa lookup csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("loader: read oa lookup header: %w", err)
	}
	cols, err := columnIndex(header, oaLookupOA, oaLookupMSOA, oaLookupLAD)
	if err != nil {
		return nil, err
	}

	var rows []OAHierarchyRow
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: read oa lookup row: %w", err)
		}
		if row[cols[oaLookupOA]] == "" {
			continue
		}
		rows = append(rows, OAHierarchyRow{
			OA:   row[cols[oaLookupOA]],
			MSOA: row[cols[oaLookupMSOA]],
			LAD:  row[cols[oaLookupLAD]],
		})
	}

	log.Info().Int("rows", len(rows)).Str("file", filepath.Base(path)).Msg("loaded OA hierarchy lookup")
	return rows, nil
}
