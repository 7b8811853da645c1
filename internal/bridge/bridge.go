// Package bridge resolves cross-references between the administrative
// hierarchies the source datasets are keyed by. Direct lookups (postcode
// to OA to MSOA to LAD) come from the authoritative NSPL table and are
// never second-guessed spatially; OA to constituency has no authoritative
// table because the two geographies are independently drawn, so it is
// derived spatially and memoised for the run.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"constituency-streets/internal/geoindex"
	"constituency-streets/internal/models"
)

// ErrHierarchyGap marks an identifier missing from the lookup table.
// Callers propagate the blank fields and continue; it is never fatal.
var ErrHierarchyGap = errors.New("bridge: identifier not in lookup table")

// Hierarchy is the administrative chain a postcode or OA sits in. Fields
// the lookup cannot supply are left blank.
type Hierarchy struct {
	OA   string
	MSOA string
	LAD  string
}

// LookupStore is the slice of the persistence layer the bridge reads.
type LookupStore interface {
	PostcodeHierarchy(ctx context.Context, postcode string) (Hierarchy, bool, error)
	OAHierarchy(ctx context.Context, oaCode string) (Hierarchy, bool, error)
}

// Bridge answers hierarchy and locality questions over static inputs.
// Built once per run; safe for concurrent readers. The derivation cache
// lives on the instance, never in a global, so tests can construct fresh
// isolated bridges.
type Bridge struct {
	store LookupStore
	index *geoindex.Index

	oaUnits map[string]models.AdminUnit

	mu     sync.Mutex
	oaCons map[string]string // OA code -> constituency code, "" when derivation found nothing

	postcodes []models.Postcode
	pcIndex   *geoindex.PointIndex
}

// New builds a bridge over the lookup store, the geometry index and the
// loaded OA units (for their representative points). Postcodes with a
// location are indexed for nearest-postcode queries.
func New(store LookupStore, index *geoindex.Index, oaUnits []models.AdminUnit, postcodes []models.Postcode) *Bridge {
	b := &Bridge{
		store:   store,
		index:   index,
		oaUnits: make(map[string]models.AdminUnit, len(oaUnits)),
		oaCons:  make(map[string]string),
	}
	for _, u := range oaUnits {
		if u.Kind == models.KindOA {
			b.oaUnits[u.Code] = u
		}
	}
	var pts []models.Point
	for _, pc := range postcodes {
		if !pc.HasLocation {
			continue
		}
		b.postcodes = append(b.postcodes, pc)
		pts = append(pts, pc.Location)
	}
	b.pcIndex = geoindex.NewPointIndex(pts)
	return b
}

// ResolveHierarchy looks up the administrative chain for a postcode or an
// OA code. Absence returns ErrHierarchyGap with a zero Hierarchy; store
// failures are wrapped and passed up.
func (b *Bridge) ResolveHierarchy(ctx context.Context, code string) (Hierarchy, error) {
	h, found, err := b.store.PostcodeHierarchy(ctx, code)
	if err != nil {
		return Hierarchy{}, fmt.Errorf("bridge: postcode lookup: %w", err)
	}
	if found {
		return h, nil
	}
	h, found, err = b.store.OAHierarchy(ctx, code)
	if err != nil {
		return Hierarchy{}, fmt.Errorf("bridge: oa lookup: %w", err)
	}
	if found {
		return h, nil
	}
	return Hierarchy{}, fmt.Errorf("%w: %s", ErrHierarchyGap, code)
}

// OAToConstituency derives the constituency an OA belongs to by testing
// the OA's representative point against the constituency boundaries. The
// result is a pure function of static inputs, so it is cached per OA code
// for the run. ok is false when no boundary contains the point, which is
// expected for coastal or boundary-snapped OAs, or when the OA is unknown.
func (b *Bridge) OAToConstituency(oaCode string) (string, bool) {
	b.mu.Lock()
	if code, hit := b.oaCons[oaCode]; hit {
		b.mu.Unlock()
		return code, code != ""
	}
	b.mu.Unlock()

	code := b.deriveConstituency(oaCode)

	b.mu.Lock()
	b.oaCons[oaCode] = code
	b.mu.Unlock()
	return code, code != ""
}

func (b *Bridge) deriveConstituency(oaCode string) string {
	oa, ok := b.oaUnits[oaCode]
	if !ok {
		return ""
	}
	var rep models.Point
	switch {
	case oa.HasRepPoint:
		rep = oa.RepPoint
	case len(oa.Boundary) > 0:
		rep = oa.Boundary[0].Centroid()
	default:
		return ""
	}
	unit, found := b.index.ContainingKind(rep, models.KindConstituency)
	if !found {
		return ""
	}
	return unit.Code
}

// NearestPostcode returns the closest postcode point within maxKm of pt.
func (b *Bridge) NearestPostcode(pt models.Point, maxKm float64) (models.Postcode, bool) {
	idx, dist, ok := b.pcIndex.Nearest(geoindex.ToWGS84(pt))
	if !ok || dist > maxKm {
		return models.Postcode{}, false
	}
	return b.postcodes[idx], true
}
