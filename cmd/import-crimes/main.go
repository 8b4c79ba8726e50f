package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/joho/godotenv"

	"github.com/sigap-dashboard/sigap-api/internal/platform/config"
	firestoreclient "github.com/sigap-dashboard/sigap-api/internal/platform/firestore"
	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/internal/platform/postgres"
	redisclient "github.com/sigap-dashboard/sigap-api/internal/platform/redis"
	"github.com/sigap-dashboard/sigap-api/internal/repository"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

func main() {
	district := flag.String("district", "", "Only import this district ID")
	year := flag.Int("year", 0, "Only import this year")
	month := flag.Int("month", 0, "Only import this month (1-12)")
	limit := flag.Int("limit", 0, "Maximum number of crime groups to import (0 = all)")
	dryRun := flag.Bool("dry-run", false, "Preview without writing to Firestore")
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required to import crimes")
	}

	zl := logger.Must(logger.Config{Level: cfg.LogLevel})
	defer func() { _ = zl.Sync() }()

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	client, credsSource, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to Firestore project %s using %s credentials", cfg.FirebaseProjectID, credsSource)

	src := repository.NewPostgresCrimeRepository(db, zl)
	groups, err := src.List(ctx, model.CrimeQuery{DistrictID: *district, Year: *year, Month: *month, Limit: *limit})
	if err != nil {
		log.Fatalf("Failed to read crimes from Postgres: %v", err)
	}

	incidents := 0
	districts := map[string]int{}
	for _, g := range groups {
		incidents += len(g.Incidents)
		districts[g.DistrictID]++
	}

	mode := "LIVE"
	if *dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("\n=== Crime Import [%s] ===\n", mode)
	fmt.Printf("Groups: %d, incidents: %d, districts: %d\n", len(groups), incidents, len(districts))
	fmt.Println("==========================================")

	ids := make([]string, 0, len(districts))
	for id := range districts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %-24s %d groups\n", id, districts[id])
	}

	if *dryRun || len(groups) == 0 {
		return
	}

	if err := repository.NewCrimeRepository(client, zl).BatchUpsert(ctx, groups); err != nil {
		log.Fatalf("Failed to write crimes: %v", err)
	}

	clusters := repository.NewClusterRepository(client)
	for _, id := range ids {
		if err := clusters.MarkNeedsUpdate(ctx, id); err != nil {
			log.Printf("Failed to flag cluster %s: %v", id, err)
		}
	}

	if cfg.RedisAddress != "" {
		rdb, err := redisclient.NewClient(ctx, redisclient.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("Redis unavailable, cached analytics not cleared: %v", err)
		} else {
			defer rdb.Close()
			if err := repository.NewAnalyticsCache(rdb, cfg.AnalyticsCacheTTL).InvalidateAll(ctx); err != nil {
				log.Printf("Failed to clear cached analytics: %v", err)
			}
		}
	}

	fmt.Println("==========================================")
	fmt.Printf("Imported %d crime groups\n", len(groups))
}
