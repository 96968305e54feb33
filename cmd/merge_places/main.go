package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"openwater-events-scraper/internal/services"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report clusters without merging anything")
	limit := flag.Int("limit", 0, "maximum number of clusters to merge (0 = no limit)")
	threshold := flag.Float64("threshold", 0, "same-place distance threshold in km (0 = default)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	tableName := os.Getenv("EVENTS_TABLE")
	if tableName == "" {
		log.Fatal("EVENTS_TABLE environment variable is required")
	}
	store := services.NewStorageService(dynamodb.NewFromConfig(cfg), tableName)

	merger := services.NewPlaceMerger(store, *threshold, *dryRun)
	results, err := merger.Merge(ctx, *limit)
	if err != nil {
		log.Fatalf("Place merge failed: %v", err)
	}

	merged, repointed := 0, 0
	for _, result := range results {
		merged += len(result.MergedPlaceIDs)
		repointed += result.RepointedEvents
	}
	log.Printf("Processed %d clusters: merged %d places, repointed %d events", len(results), merged, repointed)
	if *dryRun {
		log.Print("Dry run: no places were modified")
	}
}
