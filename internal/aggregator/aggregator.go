// Package aggregator merges resolved street records into the final
// per-constituency dataset, collapsing near-duplicate gazetteer entries
// under a normalised name. Grouping is commutative, so records may arrive
// in any order from the resolver workers; the aggregator itself is a
// single-threaded reducer.
package aggregator

import (
	"regexp"
	"sort"
	"strings"

	"constituency-streets/internal/models"
)

// Common UK street-type abbreviations expanded to their full forms so
// that "Main St" and "Main Street" collapse onto one entry.
var streetTypeAbbreviations = map[string]string{
	"st":   "street",
	"rd":   "road",
	"ave":  "avenue",
	"av":   "avenue",
	"ln":   "lane",
	"dr":   "drive",
	"cl":   "close",
	"ct":   "court",
	"cres": "crescent",
	"gdns": "gardens",
	"gro":  "grove",
	"pl":   "place",
	"sq":   "square",
	"ter":  "terrace",
	"wy":   "way",
}

var (
	punctPattern = regexp.MustCompile(`[^\w\s]`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeName lower-cases, strips punctuation, collapses whitespace and
// expands street-type abbreviations.
func NormalizeName(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	cleaned = punctPattern.ReplaceAllString(cleaned, " ")
	cleaned = spacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	words := strings.Split(cleaned, " ")
	for i, w := range words {
		if full, ok := streetTypeAbbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

type groupKey struct {
	name         string
	constituency string
	locality     string
}

type streetKey struct {
	name         string
	constituency string
}

// Aggregator collects resolved streets and deduplicates them by
// (normalised name, constituency, locality). A record with a blank
// locality folds into an existing group for the same street rather than
// opening a duplicate row, and the first non-empty locality seen sticks.
type Aggregator struct {
	groups map[groupKey]*models.ResolvedStreet
	byName map[streetKey]groupKey
	order  []groupKey
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		groups: make(map[groupKey]*models.ResolvedStreet),
		byName: make(map[streetKey]groupKey),
	}
}

// Add merges one resolved record into the running groups. On a key
// collision the first non-empty locality is kept, address counts are
// summed and split flags are unioned.
func (a *Aggregator) Add(rec models.ResolvedStreet) {
	sk := streetKey{name: NormalizeName(rec.StreetName), constituency: rec.ConstituencyCode}
	key := groupKey{name: sk.name, constituency: sk.constituency, locality: rec.Locality}

	existing, ok := a.groups[key]
	if !ok {
		if prior, seen := a.byName[sk]; seen {
			// Same street, different locality label. A blank on either side
			// merges into one group; two distinct non-empty localities stay
			// separate rows.
			g := a.groups[prior]
			if rec.Locality == "" || g.Locality == "" {
				if g.Locality == "" && rec.Locality != "" {
					delete(a.groups, prior)
					g.Locality = rec.Locality
					a.groups[key] = g
					for i, k := range a.order {
						if k == prior {
							a.order[i] = key
							break
						}
					}
					a.byName[sk] = key
				}
				g.AddressCount += rec.AddressCount
				g.Split = g.Split || rec.Split
				return
			}
		}
		merged := rec
		a.groups[key] = &merged
		a.order = append(a.order, key)
		if _, seen := a.byName[sk]; !seen {
			a.byName[sk] = key
		}
		return
	}
	existing.AddressCount += rec.AddressCount
	existing.Split = existing.Split || rec.Split
}

// Finalize returns the merged dataset in stable order: constituency code
// ascending, then street name. Records with no constituency sort last so
// the explicitly-unresolved tail is easy to review.
func (a *Aggregator) Finalize() []models.ResolvedStreet {
	out := make([]models.ResolvedStreet, 0, len(a.groups))
	for _, key := range a.order {
		out = append(out, *a.groups[key])
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].ConstituencyCode, out[j].ConstituencyCode
		if ci != cj {
			if ci == "" {
				return false
			}
			if cj == "" {
				return true
			}
			return ci < cj
		}
		return out[i].StreetName < out[j].StreetName
	})
	return out
}
