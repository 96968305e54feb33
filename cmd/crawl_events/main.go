package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"openwater-events-scraper/internal/models"
	"openwater-events-scraper/internal/services"
)

// urlList collects repeated -event flags into one URL group.
type urlList []string

func (u *urlList) String() string { return strings.Join(*u, ",") }

func (u *urlList) Set(value string) error {
	*u = append(*u, value)
	return nil
}

func main() {
	var eventURLs urlList
	flag.Var(&eventURLs, "event", "URL of a page describing one event (repeat for multi-page events)")
	crawlURL := flag.String("crawl", "", "listing page URL to discover events from")
	dryRun := flag.Bool("dry-run", false, "run the full pipeline without writing events")
	limit := flag.Int("limit", 0, "maximum number of events to process (0 = no limit)")
	threshold := flag.Float64("threshold", 0, "same-place distance threshold in km (0 = default)")
	flag.Parse()

	if len(eventURLs) == 0 && *crawlURL == "" {
		log.Fatal("Provide either -event URLs or a -crawl listing page")
	}
	if len(eventURLs) > 0 && *crawlURL != "" {
		log.Fatal("-event and -crawl are mutually exclusive")
	}

	// Local runs keep credentials in a .env file; in Lambda the
	// environment is already populated.
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

	archive, err := services.NewArchiveClient(ctx)
	if err != nil {
		log.Printf("Archiving disabled: %v", err)
	}

	fetcher := services.NewJinaClient()
	extractor := services.NewOpenAIClient()
	geocoder := services.NewGoogleMapsClient()

	var pipelineArchive services.Archiver
	if archive != nil {
		pipelineArchive = archive
	}
	pipeline := services.NewIngestionPipeline(services.PipelineConfig{
		Fetcher:              fetcher,
		Extractor:            extractor,
		Geocoder:             geocoder,
		Store:                store,
		Archive:              pipelineArchive,
		ProximityThresholdKm: *threshold,
		DryRun:               *dryRun,
		Source:               "crawl_events",
	})

	task := &models.CrawlTask{
		TaskID:   uuid.New().String(),
		TaskType: models.TaskTypeIngestGroup,
		URLGroup: eventURLs,
		DryRun:   *dryRun,
		Limit:    *limit,
		Status:   models.TaskStatusInProgress,
	}

	var groups [][]string
	if *crawlURL != "" {
		task.TaskType = models.TaskTypeDiscoverAndIngest
		task.StartURL = *crawlURL
		task.URLGroup = nil

		crawler := services.NewDiscoveryCrawler(fetcher, extractor, store)
		groups, err = crawler.Discover(ctx, *crawlURL)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		log.Printf("Discovered %d new events to ingest", len(groups))
	} else {
		groups = [][]string{eventURLs}
	}

	if err := store.CreateCrawlTask(ctx, task); err != nil {
		log.Printf("Failed to record crawl task: %v", err)
	}

	start := time.Now()
	summary, _ := pipeline.IngestBatch(ctx, groups, *limit)

	task.Status = models.TaskStatusCompleted
	task.Committed = summary.Committed
	task.Duplicates = summary.Duplicates
	task.Failed = summary.Failed
	task.SkippedPast = summary.SkippedPast
	task.CompletedAt = time.Now()
	if err := store.UpdateCrawlTask(ctx, task); err != nil {
		log.Printf("Failed to update crawl task: %v", err)
	}

	// Per-item failures are reported in the counts, not the exit code.
	log.Printf("Done in %s: committed=%d duplicates=%d failed=%d skipped_past=%d",
		time.Since(start).Round(time.Second),
		summary.Committed, summary.Duplicates, summary.Failed, summary.SkippedPast)
}
