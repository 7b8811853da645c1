package models

import "time"

// SourceKind distinguishes where a street record came from: a gazetteer
// entry is a named point, a centerline is a road line geometry.
type SourceKind int

const (
	SourceGazetteer SourceKind = iota
	SourceCenterline
)

// Postcode is a unit postcode row from the NSPL with its representative
// point and the administrative codes the lookup table assigns it. The
// lookup is authoritative; these codes are never re-derived spatially.
type Postcode struct {
	Postcode      string
	Location      Point
	HasLocation   bool
	OACode        string
	MSOACode      string
	LADCode       string
	District      string // outward code, e.g. "GU31"
	Locality      string // best-effort neighbourhood label, when the source supplies one
	SourceDataset string
	Vintage       string
}

// Sector returns the postcode sector ("GU31 4") when the unit postcode is
// well-formed, else the empty string.
func (p Postcode) Sector() string {
	pc := p.Postcode
	if len(pc) < 5 {
		return ""
	}
	// Inward code is always 3 characters; the sector is everything up to
	// and including its leading digit.
	inward := pc[len(pc)-3:]
	outward := pc[:len(pc)-3]
	return outward + " " + inward[:1]
}

// StreetRecord is one named road or place entry awaiting resolution.
// Point records carry a single representative point; centerline records
// carry a line. The resolver reads these and emits ResolvedStreet values;
// records themselves are never mutated.
type StreetRecord struct {
	Name          string
	SourceKind    SourceKind
	Point         Point
	Line          Line // non-empty only for centerline records
	District      string
	Place         string // populated place from the gazetteer, if any
	SourceDataset string
	Vintage       string
}

// ResolvedStreet is the output entity: one street in one constituency.
// ConstituencyCode is empty for records no boundary could claim; those
// are retained, never dropped. At most one ResolvedStreet exists per
// (street name, constituency, locality) triple after aggregation.
type ResolvedStreet struct {
	StreetName       string `json:"street_name"`
	ConstituencyCode string `json:"constituency_code,omitempty"`
	Locality         string `json:"locality,omitempty"`
	AddressCount     int    `json:"address_count,omitempty"`
	Split            bool   `json:"split,omitempty"`
}

// CacheEntry is a persisted address-lookup response. Entries are
// append-only: once a key is recorded it is never re-fetched and never
// invalidated automatically.
type CacheEntry struct {
	Key       string
	Payload   []byte
	FetchedAt time.Time
}
