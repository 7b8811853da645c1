package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"constituency-streets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteConstituencyCSVs(t *testing.T) {
	dir := t.TempDir()

	streets := []models.ResolvedStreet{
		{StreetName: "Alpha Road", ConstituencyCode: "E14000001", Locality: "Townville", AddressCount: 3},
		{StreetName: "Border Road", ConstituencyCode: "E14000001", Locality: "Townville", Split: true},
		{StreetName: "Omega Way", ConstituencyCode: "E14000002"},
		{StreetName: "Lost Lane", ConstituencyCode: ""},
	}
	names := map[string]string{"E14000001": "Test Constituency"}

	require.NoError(t, WriteConstituencyCSVs(dir, streets, names))

	rows := readCSV(t, filepath.Join(dir, "Test Constituency streets.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"street_name", "locality", "address_count", "crosses_boundary"}, rows[0])
	assert.Equal(t, []string{"Alpha Road", "Townville", "3", "false"}, rows[1])
	assert.Equal(t, []string{"Border Road", "Townville", "0", "true"}, rows[2])

	// Codes without a display name fall back to the code.
	rows = readCSV(t, filepath.Join(dir, "E14000002 streets.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "Omega Way", rows[1][0])

	// Unresolved records get their own file rather than disappearing.
	rows = readCSV(t, filepath.Join(dir, "unresolved.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "Lost Lane", rows[1][0])
}
