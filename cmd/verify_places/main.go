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
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	limit := flag.Int("limit", 0, "maximum number of places to examine (0 = no limit)")
	autoVerify := flag.Bool("auto-verify", false, "stamp places verified once they have coordinates")
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
	geocoder := services.NewGoogleMapsClient()

	verifier := services.NewPlaceVerifier(store, geocoder, *autoVerify, *dryRun)
	if _, err := verifier.Run(ctx, *limit); err != nil {
		log.Fatalf("Verification run failed: %v", err)
	}
}
