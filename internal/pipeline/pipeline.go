// Package pipeline wires the reconciliation run end to end: load the
// typed datasets, build the read-only spatial and hierarchy state, fan
// the street records over the resolver pool, optionally enrich with
// address counts, then aggregate and emit. Only unusable inputs (no
// boundaries at all, unreachable store) abort a run; everything else
// degrades to per-record annotations.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"constituency-streets/internal/aggregator"
	"constituency-streets/internal/bridge"
	"constituency-streets/internal/config"
	"constituency-streets/internal/enrichment"
	"constituency-streets/internal/geoindex"
	"constituency-streets/internal/loader"
	"constituency-streets/internal/models"
	"constituency-streets/internal/resolver"
	"constituency-streets/internal/writer"

	"github.com/rs/zerolog/log"
)

// Sink persists the final dataset. Optional; CSV output happens anyway.
type Sink interface {
	UpsertResolvedStreets(ctx context.Context, streets []models.ResolvedStreet) error
}

// Pipeline holds the run configuration and the optional collaborators.
// lookup may be nil, in which case an in-memory lookup is built from the
// loaded postcodes; enrich may be nil to skip address enrichment; sink
// may be nil to skip persistence.
type Pipeline struct {
	cfg    config.Config
	lookup bridge.LookupStore
	enrich *enrichment.Cache
	sink   Sink
}

// New assembles a pipeline.
func New(cfg config.Config, lookup bridge.LookupStore, enrich *enrichment.Cache, sink Sink) *Pipeline {
	return &Pipeline{cfg: cfg, lookup: lookup, enrich: enrich, sink: sink}
}

// Run executes the full reconciliation and returns the final dataset.
func (p *Pipeline) Run(ctx context.Context) ([]models.ResolvedStreet, error) {
	units, err := p.loadBoundaries()
	if err != nil {
		return nil, err
	}

	index, err := geoindex.Build(units)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	postcodes, err := loader.LoadPostcodes(p.cfg.PostcodesCSV)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	lookup := p.lookup
	if lookup == nil {
		var oaRows []bridge.Hierarchy
		if p.cfg.OALookupCSV != "" {
			rows, err := loader.LoadOAHierarchy(p.cfg.OALookupCSV)
			if err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
			for _, r := range rows {
				oaRows = append(oaRows, bridge.Hierarchy{OA: r.OA, MSOA: r.MSOA, LAD: r.LAD})
			}
		}
		lookup = bridge.NewMemoryLookup(postcodes, oaRows)
	}

	var oaUnits []models.AdminUnit
	for _, u := range units {
		if u.Kind == models.KindOA {
			oaUnits = append(oaUnits, u)
		}
	}
	br := bridge.New(lookup, index, oaUnits, postcodes)

	streets, err := loader.LoadStreets(p.cfg.StreetsCSV)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	res := resolver.New(index, br, p.cfg.LocalityRadiusKm)
	resolved := res.ResolveAll(ctx, streets, p.cfg.Workers)

	agg := aggregator.New()
	for _, rec := range resolved {
		agg.Add(rec)
	}
	final := agg.Finalize()

	if p.enrich != nil && p.cfg.EnrichAddresses {
		p.enrichAddresses(ctx, final)
	}

	names := make(map[string]string)
	for _, u := range units {
		if u.Kind == models.KindConstituency {
			names[u.Code] = u.Name
		}
	}
	if p.cfg.OutputDir != "" {
		if err := writer.WriteConstituencyCSVs(p.cfg.OutputDir, final, names); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	if p.sink != nil {
		if err := p.sink.UpsertResolvedStreets(ctx, final); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	log.Info().Int("streets", len(final)).Msg("pipeline complete")
	return final, nil
}

// enrichAddresses fills address counts from the lookup API, best effort.
// Failures leave the record enrichment-incomplete and the run continues.
func (p *Pipeline) enrichAddresses(ctx context.Context, final []models.ResolvedStreet) {
	failed := 0
	for i := range final {
		s := &final[i]
		if s.ConstituencyCode == "" || s.Locality == "" {
			continue
		}
		payload, err := p.enrich.Fetch(ctx, s.StreetName+" "+s.Locality)
		if err != nil {
			failed++
			log.Debug().Err(err).Str("street", s.StreetName).Msg("enrichment incomplete")
			continue
		}
		s.AddressCount = enrichment.CountResidential(payload)
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("some streets left without address counts")
	}
}

// loadBoundaries reads every GeoJSON file in the boundaries directory.
// The hierarchy a file belongs to comes from its name prefix.
func (p *Pipeline) loadBoundaries() ([]models.AdminUnit, error) {
	entries, err := os.ReadDir(p.cfg.BoundariesDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read boundaries dir: %w", err)
	}

	var units []models.AdminUnit
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".geojson") {
			continue
		}
		kind, vintage := kindFromName(entry.Name())
		if kind == models.KindUnknown {
			log.Warn().Str("file", entry.Name()).Msg("boundary file with unrecognised kind prefix, skipped")
			continue
		}
		loaded, err := loader.LoadBoundaries(filepath.Join(p.cfg.BoundariesDir, entry.Name()), kind, vintage)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		units = append(units, loaded...)
	}
	return units, nil
}

// kindFromName maps a boundary filename like "constituencies_2022.geojson"
// to the hierarchy it carries and its vintage.
func kindFromName(name string) (models.UnitKind, string) {
	base := strings.TrimSuffix(name, ".geojson")
	vintage := ""
	if i := strings.LastIndex(base, "_"); i >= 0 {
		vintage = base[i+1:]
	}
	switch {
	case strings.HasPrefix(base, "constituencies"):
		return models.KindConstituency, vintage
	case strings.HasPrefix(base, "lads"):
		return models.KindLAD, vintage
	case strings.HasPrefix(base, "msoas"):
		return models.KindMSOA, vintage
	case strings.HasPrefix(base, "oas"):
		return models.KindOA, vintage
	default:
		return models.KindUnknown, vintage
	}
}
