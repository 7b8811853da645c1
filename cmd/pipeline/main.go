package main

import (
	"context"
	"flag"

	"constituency-streets/internal/bridge"
	"constituency-streets/internal/config"
	"constituency-streets/internal/enrichment"
	"constituency-streets/internal/pipeline"
	"constituency-streets/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func main() {
	useDB := flag.Bool("db", false, "read lookups from and persist results to the configured database")
	flag.Parse()

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	ctx := context.Background()

	var lookup bridge.LookupStore
	var sink pipeline.Sink
	var enrich *enrichment.Cache

	if *useDB {
		pool, err := pgxpool.New(ctx, cfg.DBSource)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot connect to db")
		}
		defer pool.Close()

		repo := repository.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("cannot ensure schema")
		}
		lookup = repo
		sink = repo

		if cfg.EnrichAddresses {
			client := enrichment.NewHTTPClient(cfg.AddressAPIBaseURL, cfg.AddressAPIKey, 0)
			enrich = enrichment.New(repo, client, enrichment.Options{
				RequestsPerSecond: cfg.RequestsPerSecond,
				DailyBudget:       cfg.DailyQuota,
			})
			enrich.Start(ctx)
			defer enrich.Close()
		}
	}

	p := pipeline.New(cfg, lookup, enrich, sink)
	if _, err := p.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}
}
