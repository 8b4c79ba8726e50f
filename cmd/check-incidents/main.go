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
	"github.com/sigap-dashboard/sigap-api/internal/repository"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

func main() {
	limit := flag.Int("limit", 50, "Number of crime groups to inspect")
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, _, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	groups, err := repository.NewCrimeRepository(client, nil).List(ctx, model.CrimeQuery{Limit: *limit})
	if err != nil {
		log.Fatalf("Failed to list crime groups: %v", err)
	}

	statusCounts := make(map[string]int)
	categoryCounts := make(map[string]int)
	total, resolved, untimed := 0, 0, 0

	for _, g := range groups {
		for _, inc := range g.Incidents {
			total++
			status := inc.Status
			if status == "" {
				status = "<empty>"
			}
			statusCounts[status]++
			categoryCounts[util.LabelOrUnknown(inc.Category)]++
			if util.IsResolved(inc.Status) {
				resolved++
			}
			if !inc.HasTimestamp() {
				untimed++
			}

			if total <= 5 {
				fmt.Printf("\nSample %d (%s):\n", total, g.ID)
				fmt.Printf("  District: %s\n", g.DistrictName)
				fmt.Printf("  Status: '%s'\n", inc.Status)
				fmt.Printf("  Category: '%s'\n", inc.Category)
				fmt.Printf("  Timestamp: %v\n", inc.Timestamp)
			}
		}
	}

	fmt.Printf("\n=== Summary of %d incidents in %d groups ===\n", total, len(groups))
	printCounts("Status value distribution", statusCounts)
	printCounts("Category value distribution", categoryCounts)
	fmt.Printf("\nCounted as resolved: %d\n", resolved)
	fmt.Printf("Missing timestamp: %d\n", untimed)
}

func printCounts(title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  '%s': %d\n", k, counts[k])
	}
}
