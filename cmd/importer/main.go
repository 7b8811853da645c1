package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"constituency-streets/internal/bridge"
	"constituency-streets/internal/config"
	"constituency-streets/internal/loader"
	"constituency-streets/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	postcodesFile := flag.String("postcodes", "", "Path to the NSPL postcode CSV to import")
	oaLookupFile := flag.String("oa-lookup", "", "Path to the OA to MSOA to LAD lookup CSV to import")
	flag.Parse()

	if *postcodesFile == "" && *oaLookupFile == "" {
		fmt.Println("Error: at least one of --postcodes or --oa-lookup is required")
		os.Exit(1)
	}

	// Load config
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Connect to DB
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBSource)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Printf("Error creating schema: %v\n", err)
		os.Exit(1)
	}

	if *postcodesFile != "" {
		fmt.Printf("Starting import from file: %s\n", *postcodesFile)

		postcodes, err := loader.LoadPostcodes(*postcodesFile)
		if err != nil {
			fmt.Printf("Error parsing CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Parsed %d postcodes\n", len(postcodes))

		if err := repo.BulkInsertPostcodes(ctx, postcodes); err != nil {
			fmt.Printf("Error inserting postcodes: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully imported %d postcodes\n", len(postcodes))
	}

	if *oaLookupFile != "" {
		fmt.Printf("Starting import from file: %s\n", *oaLookupFile)

		rows, err := loader.LoadOAHierarchy(*oaLookupFile)
		if err != nil {
			fmt.Printf("Error parsing CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Parsed %d lookup rows\n", len(rows))

		hierarchy := make([]bridge.Hierarchy, len(rows))
		for i, r := range rows {
			hierarchy[i] = bridge.Hierarchy{OA: r.OA, MSOA: r.MSOA, LAD: r.LAD}
		}
		if err := repo.BulkInsertOAHierarchy(ctx, hierarchy); err != nil {
			fmt.Printf("Error inserting lookup rows: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully imported %d lookup rows\n", len(rows))
	}
}
