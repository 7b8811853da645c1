package geoindex

import (
	"errors"
	"fmt"

	"constituency-streets/internal/models"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMalformedGeometry marks a boundary whose geometry cannot be
	// indexed (empty, or a degenerate ring). Such rows are skipped with a
	// warning; they never abort a build on their own.
	ErrMalformedGeometry = errors.New("geoindex: malformed geometry")

	// ErrNoBoundaries is fatal: an index with nothing in it cannot answer
	// any query, so the run is unusable.
	ErrNoBoundaries = errors.New("geoindex: no usable boundaries loaded")
)

// Index answers containment, nearest-neighbour and line-intersection
// queries over administrative boundaries. All geometry is reprojected to
// WGS84 once at build time; the index is read-only afterwards and safe
// for concurrent readers.
type Index struct {
	units     []models.AdminUnit
	byKind    map[models.UnitKind][]int // positions into units
	centroids map[models.UnitKind]*PointIndex
	centPos   map[models.UnitKind][]int // centroid slot -> unit position
}

// Build indexes every unit that carries a boundary. Malformed polygons
// are skipped with a warning so that a minority of bad rows cannot block
// the run; zero usable boundaries returns ErrNoBoundaries.
func Build(boundaries []models.AdminUnit) (*Index, error) {
	idx := &Index{
		byKind:    make(map[models.UnitKind][]int),
		centroids: make(map[models.UnitKind]*PointIndex),
		centPos:   make(map[models.UnitKind][]int),
	}

	for _, u := range boundaries {
		if len(u.Boundary) == 0 {
			continue
		}
		normalised, err := normaliseBoundary(u)
		if err != nil {
			log.Warn().Err(err).Str("code", u.Code).Stringer("kind", u.Kind).
				Msg("skipping boundary with malformed geometry")
			continue
		}
		pos := len(idx.units)
		idx.units = append(idx.units, normalised)
		idx.byKind[normalised.Kind] = append(idx.byKind[normalised.Kind], pos)
	}

	if len(idx.units) == 0 {
		return nil, ErrNoBoundaries
	}

	for kind, positions := range idx.byKind {
		pts := make([]models.Point, len(positions))
		for i, pos := range positions {
			u := idx.units[pos]
			if u.HasRepPoint {
				pts[i] = ToWGS84(u.RepPoint)
			} else {
				pts[i] = u.Boundary[0].Centroid()
			}
		}
		idx.centroids[kind] = NewPointIndex(pts)
		idx.centPos[kind] = positions
	}

	log.Info().Int("boundaries", len(idx.units)).Msg("built geometry index")
	return idx, nil
}

// normaliseBoundary reprojects every ring to WGS84 and recomputes
// bounding boxes. Reprojection happens here, once, never per query.
func normaliseBoundary(u models.AdminUnit) (models.AdminUnit, error) {
	out := u
	out.Boundary = make([]models.Polygon, 0, len(u.Boundary))
	for _, poly := range u.Boundary {
		if len(poly.Rings) == 0 || len(poly.Rings[0]) < 3 {
			return u, fmt.Errorf("%w: %s has a ring with fewer than 3 vertices", ErrMalformedGeometry, u.Code)
		}
		np := models.Polygon{Rings: make([][]models.Point, len(poly.Rings))}
		for ri, ring := range poly.Rings {
			nr := make([]models.Point, len(ring))
			for pi, pt := range ring {
				nr[pi] = ToWGS84(pt)
			}
			np.Rings[ri] = nr
		}
		np.ComputeBBox()
		out.Boundary = append(out.Boundary, np)
	}
	return out, nil
}

// Containing returns the unit whose boundary contains the point. When
// boundaries from different vintages overlap and more than one contains
// the point, the kind with the highest precedence wins and the ambiguity
// is logged rather than surfaced as an error. ok is false when nothing
// contains the point; that is an expected outcome, not a failure.
func (x *Index) Containing(pt models.Point) (models.AdminUnit, bool) {
	p := ToWGS84(pt)
	var best models.AdminUnit
	found := 0
	for _, u := range x.units {
		if unitContains(u, p) {
			found++
			if found == 1 || u.Kind.Precedence() > best.Kind.Precedence() {
				best = u
			}
		}
	}
	if found > 1 {
		log.Warn().Float64("lat", p.Lat()).Float64("lon", p.Lon()).
			Int("matches", found).Str("chosen", best.Code).
			Msg("point contained by multiple boundaries, picked by kind precedence")
	}
	return best, found > 0
}

// ContainingKind is Containing restricted to one hierarchy. Overlap
// within a kind can still happen when two vintages of the same boundary
// set are loaded together; the first loaded wins and the ambiguity is
// logged, mirroring the cross-kind tie-break.
func (x *Index) ContainingKind(pt models.Point, kind models.UnitKind) (models.AdminUnit, bool) {
	p := ToWGS84(pt)
	var first models.AdminUnit
	found := 0
	for _, pos := range x.byKind[kind] {
		if unitContains(x.units[pos], p) {
			found++
			if found == 1 {
				first = x.units[pos]
			}
		}
	}
	if found > 1 {
		log.Warn().Float64("lat", p.Lat()).Float64("lon", p.Lon()).
			Stringer("kind", kind).Int("matches", found).Str("chosen", first.Code).
			Msg("point contained by multiple boundaries of one kind, kept the first loaded")
	}
	return first, found > 0
}

// Nearest returns the unit of the given kind whose representative point
// is closest to pt, with the distance in km.
func (x *Index) Nearest(pt models.Point, kind models.UnitKind) (models.AdminUnit, float64, bool) {
	tree, ok := x.centroids[kind]
	if !ok {
		return models.AdminUnit{}, 0, false
	}
	slot, dist, ok := tree.Nearest(ToWGS84(pt))
	if !ok {
		return models.AdminUnit{}, 0, false
	}
	return x.units[x.centPos[kind][slot]], dist, true
}

// IntersectsAny returns every unit of the given kind the line touches.
// All intersecting units come back so the caller owns the split policy
// for roads that cross a boundary.
func (x *Index) IntersectsAny(line models.Line, kind models.UnitKind) []models.AdminUnit {
	wgs := make([]models.Point, len(line))
	for i, pt := range line {
		wgs[i] = ToWGS84(pt)
	}
	var out []models.AdminUnit
	for _, pos := range x.byKind[kind] {
		u := x.units[pos]
		for _, poly := range u.Boundary {
			if lineIntersectsPolygon(wgs, poly) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

func unitContains(u models.AdminUnit, p models.Point) bool {
	for _, poly := range u.Boundary {
		if pointInPolygon(p, poly) {
			return true
		}
	}
	return false
}
