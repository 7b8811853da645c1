// Package resolver walks each street record through the resolution state
// machine: spatial match against the constituency boundaries, then a
// locality hint from the nearest postcode. Records no boundary can claim
// fall back to the postcode hierarchy, and records that stay unresolved
// are still emitted with an empty constituency code; dropping them
// silently would be a correctness bug.
package resolver

import (
	"constituency-streets/internal/bridge"
	"constituency-streets/internal/geoindex"
	"constituency-streets/internal/models"

	"github.com/rs/zerolog/log"
)

// Resolver holds the read-only shared state a worker needs. Safe for
// concurrent use once built.
type Resolver struct {
	index    *geoindex.Index
	bridge   *bridge.Bridge
	radiusKm float64 // bounded search radius for locality hints
}

// New builds a resolver. radiusKm bounds the nearest-postcode search;
// zero means 2 km.
func New(index *geoindex.Index, br *bridge.Bridge, radiusKm float64) *Resolver {
	if radiusKm <= 0 {
		radiusKm = 2
	}
	return &Resolver{index: index, bridge: br, radiusKm: radiusKm}
}

// Resolve assigns a constituency and locality to one street record. A
// centerline crossing several constituencies yields one output per
// constituency it touches with the split flag set; sub-segment naming is
// not reconciled, a road partly in one seat is relevant to both.
func (r *Resolver) Resolve(rec models.StreetRecord) []models.ResolvedStreet {
	units := r.spatialMatch(rec)

	if len(units) == 0 {
		if code, ok := r.hierarchyFallback(rec); ok {
			return []models.ResolvedStreet{r.finish(rec, code, false)}
		}
		log.Debug().Str("street", rec.Name).Msg("no constituency resolved, retaining with empty code")
		return []models.ResolvedStreet{r.finish(rec, "", false)}
	}

	split := len(units) > 1
	out := make([]models.ResolvedStreet, 0, len(units))
	for _, u := range units {
		out = append(out, r.finish(rec, u.Code, split))
	}
	return out
}

// spatialMatch is the SpatiallyMatched step: containment for point
// records, intersection for centerlines.
func (r *Resolver) spatialMatch(rec models.StreetRecord) []models.AdminUnit {
	if rec.SourceKind == models.SourceCenterline && len(rec.Line) > 0 {
		return r.index.IntersectsAny(rec.Line, models.KindConstituency)
	}
	unit, ok := r.index.ContainingKind(rec.Point, models.KindConstituency)
	if !ok {
		return nil
	}
	return []models.AdminUnit{unit}
}

// hierarchyFallback covers boundary gaps: when no polygon claims the
// record, the nearest postcode's OA is bridged to a constituency
// spatially. The NSPL assignment of postcode to OA stays authoritative;
// only the OA to constituency step is derived.
func (r *Resolver) hierarchyFallback(rec models.StreetRecord) (string, bool) {
	pc, ok := r.bridge.NearestPostcode(r.repPoint(rec), r.radiusKm)
	if !ok || pc.OACode == "" {
		return "", false
	}
	return r.bridge.OAToConstituency(pc.OACode)
}

// finish is the LocalityAssigned step: named locality, else postcode
// sector, else postcode district, else the gazetteer's populated place.
// Failure to find any label leaves the locality blank but never reverts
// the constituency assignment.
func (r *Resolver) finish(rec models.StreetRecord, constituency string, split bool) models.ResolvedStreet {
	out := models.ResolvedStreet{
		StreetName:       rec.Name,
		ConstituencyCode: constituency,
		Split:            split,
	}
	if pc, ok := r.bridge.NearestPostcode(r.repPoint(rec), r.radiusKm); ok {
		switch {
		case pc.Locality != "":
			out.Locality = pc.Locality
		case pc.Sector() != "":
			out.Locality = pc.Sector()
		default:
			out.Locality = pc.District
		}
	}
	if out.Locality == "" {
		out.Locality = rec.Place
	}
	return out
}

func (r *Resolver) repPoint(rec models.StreetRecord) models.Point {
	if rec.SourceKind == models.SourceCenterline && len(rec.Line) > 0 {
		return rec.Line[len(rec.Line)/2]
	}
	return rec.Point
}
