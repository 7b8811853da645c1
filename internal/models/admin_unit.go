package models

// UnitKind distinguishes the administrative hierarchies a boundary or
// lookup row belongs to. The zero value is deliberately invalid.
type UnitKind int

const (
	KindUnknown UnitKind = iota
	KindOA
	KindMSOA
	KindLAD
	KindConstituency
)

func (k UnitKind) String() string {
	switch k {
	case KindOA:
		return "OA"
	case KindMSOA:
		return "MSOA"
	case KindLAD:
		return "LAD"
	case KindConstituency:
		return "constituency"
	default:
		return "unknown"
	}
}

// Precedence ranks kinds for the overlapping-containment tie-break:
// higher wins. Boundary datasets from different vintages are not
// guaranteed disjoint, so containment can match more than one polygon.
func (k UnitKind) Precedence() int {
	switch k {
	case KindConstituency:
		return 4
	case KindLAD:
		return 3
	case KindMSOA:
		return 2
	case KindOA:
		return 1
	default:
		return 0
	}
}

// AdminUnit is one node in an administrative hierarchy. Boundary is empty
// for rows that come from non-spatial lookup tables. Units are created in
// bulk at load time and never mutated afterwards.
type AdminUnit struct {
	Code          string
	Kind          UnitKind
	Name          string
	Boundary      []Polygon // multipolygon; empty when the source row carries no geometry
	RepPoint      Point     // population-weighted centroid when the dataset supplies one
	HasRepPoint   bool
	SourceDataset string
	Vintage       string
}
