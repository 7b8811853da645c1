package bridge

import (
	"context"

	"constituency-streets/internal/models"
)

// MemoryLookup is an in-process LookupStore built straight from loaded
// records, for pipeline runs that skip the database and for tests.
type MemoryLookup struct {
	byPostcode map[string]Hierarchy
	byOA       map[string]Hierarchy
}

// NewMemoryLookup indexes the loaded postcodes and OA lookup rows.
func NewMemoryLookup(postcodes []models.Postcode, oaRows []Hierarchy) *MemoryLookup {
	m := &MemoryLookup{
		byPostcode: make(map[string]Hierarchy, len(postcodes)),
		byOA:       make(map[string]Hierarchy, len(oaRows)),
	}
	for _, pc := range postcodes {
		m.byPostcode[pc.Postcode] = Hierarchy{OA: pc.OACode, MSOA: pc.MSOACode, LAD: pc.LADCode}
	}
	for _, row := range oaRows {
		m.byOA[row.OA] = row
	}
	return m
}

func (m *MemoryLookup) PostcodeHierarchy(_ context.Context, postcode string) (Hierarchy, bool, error) {
	h, ok := m.byPostcode[postcode]
	return h, ok, nil
}

func (m *MemoryLookup) OAHierarchy(_ context.Context, oaCode string) (Hierarchy, bool, error) {
	h, ok := m.byOA[oaCode]
	return h, ok, nil
}
