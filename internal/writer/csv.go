// Package writer serialises the final dataset. One CSV per constituency
// keeps the output directly usable for campaign work; records no boundary
// claimed go to their own file so the incompleteness is visible, not
// hidden.
package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"constituency-streets/internal/models"

	"github.com/rs/zerolog/log"
)

// WriteConstituencyCSVs writes one streets CSV per constituency under
// outputDir. names maps constituency codes to display names for
// friendlier filenames; codes without a name fall back to the code.
func WriteConstituencyCSVs(outputDir string, streets []models.ResolvedStreet, names map[string]string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("writer: create output dir: %w", err)
	}

	byCode := make(map[string][]models.ResolvedStreet)
	for _, s := range streets {
		byCode[s.ConstituencyCode] = append(byCode[s.ConstituencyCode], s)
	}

	for code, group := range byCode {
		name := fileName(code, names)
		if err := writeOne(filepath.Join(outputDir, name), group); err != nil {
			return err
		}
	}

	log.Info().Int("constituencies", len(byCode)).Str("dir", outputDir).Msg("wrote street listings")
	return nil
}

func fileName(code string, names map[string]string) string {
	if code == "" {
		return "unresolved.csv"
	}
	name := code
	if n, ok := names[code]; ok && n != "" {
		name = n
	}
	name = strings.ReplaceAll(name, string(os.PathSeparator), "-")
	return name + " streets.csv"
}

func writeOne(path string, streets []models.ResolvedStreet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writer: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"street_name", "locality", "address_count", "crosses_boundary"}); err != nil {
		return fmt.Errorf("writer: write header: %w", err)
	}
	for _, s := range streets {
		row := []string{s.StreetName, s.Locality, strconv.Itoa(s.AddressCount), strconv.FormatBool(s.Split)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writer: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writer: flush %s: %w", path, err)
	}
	return nil
}
