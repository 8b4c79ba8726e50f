package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/sigap-dashboard/sigap-api/internal/business/clustering"
	"github.com/sigap-dashboard/sigap-api/internal/platform/config"
	firestoreclient "github.com/sigap-dashboard/sigap-api/internal/platform/firestore"
	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/internal/repository"
)

func main() {
	period := flag.String("period", "", "Month key to archive under, e.g. 2024-3 (defaults to last month)")
	dryRun := flag.Bool("dry-run", false, "Preview the live clusters without writing history")
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, credsSource, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to Firestore project %s using %s credentials", cfg.FirebaseProjectID, credsSource)

	if *period == "" {
		*period = clustering.PreviousPeriod(time.Now().In(cfg.Location()))
	}

	mode := "LIVE"
	if *dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("\n=== Cluster Migration [%s] ===\n", mode)
	fmt.Printf("Period: %s\n", *period)
	fmt.Println("==========================================")

	clusters := repository.NewClusterRepository(client)
	svc := clustering.NewService(nil, clusters, repository.NewMigrationRunRepository(client), nil, clustering.Config{
		Logger: logger.Must(logger.Config{Level: cfg.LogLevel}),
	})

	if *dryRun {
		live, err := svc.Live(ctx)
		if err != nil {
			log.Fatalf("Failed to list live clusters: %v", err)
		}
		for _, c := range live {
			note := ""
			if c.NeedsUpdate {
				note = " (needs update)"
			}
			fmt.Printf("  %-24s %-8s count=%d%s\n", c.DistrictName, c.Level, c.Count, note)
		}
		fmt.Printf("\nWould archive %d clusters under %s\n", len(live), *period)
		return
	}

	run, err := svc.Migrate(ctx, *period)
	if err != nil {
		log.Fatalf("Migration %s failed: %v", run.RunID, err)
	}

	fmt.Println("==========================================")
	fmt.Printf("Run %s: %s (found=%d migrated=%d)\n", run.RunID, run.Status, run.Stats.Found, run.Stats.Migrated)
}
