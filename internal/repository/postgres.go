package repository

import (
	"context"
	"errors"
	"fmt"

	"constituency-streets/internal/bridge"
	"constituency-streets/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the persistence layer over PostgreSQL: the
// authoritative lookup tables, the enrichment cache and the resolved
// output. It backs both the pipeline and the query API.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS postcodes (
		postcode VARCHAR(8) PRIMARY KEY,
		oa_code VARCHAR(9),
		msoa_code VARCHAR(9),
		lad_code VARCHAR(9),
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		source_dataset VARCHAR(255),
		vintage VARCHAR(32)
	);
	CREATE TABLE IF NOT EXISTS oa_hierarchy (
		oa_code VARCHAR(9) PRIMARY KEY,
		msoa_code VARCHAR(9),
		lad_code VARCHAR(9)
	);
	CREATE TABLE IF NOT EXISTS cache_entries (
		query_key TEXT PRIMARY KEY,
		payload BYTEA,
		fetched_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS resolved_streets (
		street_name TEXT NOT NULL,
		constituency_code VARCHAR(9) NOT NULL DEFAULT '',
		locality TEXT NOT NULL DEFAULT '',
		address_count INT NOT NULL DEFAULT 0,
		split BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (street_name, constituency_code, locality)
	);
	CREATE INDEX IF NOT EXISTS resolved_streets_constituency_idx ON resolved_streets (constituency_code);
	`
	_, err := r.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("repository: ensure schema: %w", err)
	}
	return nil
}

// BulkInsertPostcodes loads the postcode lookup with CopyFrom. The table
// is truncated first: the NSPL is replaced wholesale per vintage.
func (r *Repository) BulkInsertPostcodes(ctx context.Context, postcodes []models.Postcode) error {
	if _, err := r.db.Exec(ctx, "TRUNCATE postcodes"); err != nil {
		return fmt.Errorf("repository: truncate postcodes: %w", err)
	}
	_, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"postcodes"},
		[]string{"postcode", "oa_code", "msoa_code", "lad_code", "lat", "lon", "source_dataset", "vintage"},
		pgx.CopyFromSlice(len(postcodes), func(i int) ([]interface{}, error) {
			pc := postcodes[i]
			var lat, lon interface{}
			if pc.HasLocation {
				lat, lon = pc.Location.Lat(), pc.Location.Lon()
			}
			return []interface{}{pc.Postcode, pc.OACode, pc.MSOACode, pc.LADCode, lat, lon, pc.SourceDataset, pc.Vintage}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("repository: copy postcodes: %w", err)
	}
	return nil
}

// BulkInsertOAHierarchy loads the OA lookup table with CopyFrom.
func (r *Repository) BulkInsertOAHierarchy(ctx context.Context, rows []bridge.Hierarchy) error {
	if _, err := r.db.Exec(ctx, "TRUNCATE oa_hierarchy"); err != nil {
		return fmt.Errorf("repository: truncate oa_hierarchy: %w", err)
	}
	_, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"oa_hierarchy"},
		[]string{"oa_code", "msoa_code", "lad_code"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			return []interface{}{rows[i].OA, rows[i].MSOA, rows[i].LAD}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("repository: copy oa_hierarchy: %w", err)
	}
	return nil
}

// PostcodeHierarchy implements bridge.LookupStore.
func (r *Repository) PostcodeHierarchy(ctx context.Context, postcode string) (bridge.Hierarchy, bool, error) {
	var h bridge.Hierarchy
	err := r.db.QueryRow(ctx,
		"SELECT oa_code, msoa_code, lad_code FROM postcodes WHERE postcode = $1", postcode,
	).Scan(&h.OA, &h.MSOA, &h.LAD)
	if errors.Is(err, pgx.ErrNoRows) {
		return bridge.Hierarchy{}, false, nil
	}
	if err != nil {
		return bridge.Hierarchy{}, false, fmt.Errorf("repository: postcode hierarchy: %w", err)
	}
	return h, true, nil
}

// OAHierarchy implements bridge.LookupStore.
func (r *Repository) OAHierarchy(ctx context.Context, oaCode string) (bridge.Hierarchy, bool, error) {
	h := bridge.Hierarchy{OA: oaCode}
	err := r.db.QueryRow(ctx,
		"SELECT msoa_code, lad_code FROM oa_hierarchy WHERE oa_code = $1", oaCode,
	).Scan(&h.MSOA, &h.LAD)
	if errors.Is(err, pgx.ErrNoRows) {
		return bridge.Hierarchy{}, false, nil
	}
	if err != nil {
		return bridge.Hierarchy{}, false, fmt.Errorf("repository: oa hierarchy: %w", err)
	}
	return h, true, nil
}

// GetCacheEntry implements the enrichment store's read-through probe.
func (r *Repository) GetCacheEntry(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	entry := models.CacheEntry{Key: key}
	err := r.db.QueryRow(ctx,
		"SELECT payload, fetched_at FROM cache_entries WHERE query_key = $1", key,
	).Scan(&entry.Payload, &entry.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("repository: get cache entry: %w", err)
	}
	return entry, true, nil
}

// PutCacheEntry persists one lookup result. Entries are append-only, so
// a conflicting key is left untouched and re-recording is a no-op.
func (r *Repository) PutCacheEntry(ctx context.Context, entry models.CacheEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cache_entries (query_key, payload, fetched_at) VALUES ($1, $2, $3)
		 ON CONFLICT (query_key) DO NOTHING`,
		entry.Key, entry.Payload, entry.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: put cache entry: %w", err)
	}
	return nil
}

// UpsertResolvedStreets writes the final dataset; re-running the pipeline
// replaces counts and flags for existing triples.
func (r *Repository) UpsertResolvedStreets(ctx context.Context, streets []models.ResolvedStreet) error {
	batch := &pgx.Batch{}
	for _, s := range streets {
		batch.Queue(
			`INSERT INTO resolved_streets (street_name, constituency_code, locality, address_count, split)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (street_name, constituency_code, locality)
			 DO UPDATE SET address_count = EXCLUDED.address_count, split = EXCLUDED.split`,
			s.StreetName, s.ConstituencyCode, s.Locality, s.AddressCount, s.Split,
		)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range streets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("repository: upsert resolved streets: %w", err)
		}
	}
	return nil
}

// StreetsByConstituency returns the stored listing for one constituency,
// street name ascending.
func (r *Repository) StreetsByConstituency(ctx context.Context, code string) ([]models.ResolvedStreet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT street_name, constituency_code, locality, address_count, split
		 FROM resolved_streets WHERE constituency_code = $1 ORDER BY street_name`, code)
	if err != nil {
		return nil, fmt.Errorf("repository: streets by constituency: %w", err)
	}
	defer rows.Close()

	var streets []models.ResolvedStreet
	for rows.Next() {
		var s models.ResolvedStreet
		if err := rows.Scan(&s.StreetName, &s.ConstituencyCode, &s.Locality, &s.AddressCount, &s.Split); err != nil {
			return nil, fmt.Errorf("repository: scan resolved street: %w", err)
		}
		streets = append(streets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}
	return streets, nil
}
