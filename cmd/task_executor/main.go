package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"openwater-events-scraper/internal/models"
	"openwater-events-scraper/internal/services"
)

var (
	store     *services.StorageService
	fetcher   *services.JinaClient
	extractor *services.OpenAIClient
	geocoder  *services.GoogleMapsClient
	archive   *services.ArchiveClient
)

func init() {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	tableName := os.Getenv("EVENTS_TABLE")
	if tableName == "" {
		log.Fatal("EVENTS_TABLE environment variable is required")
	}
	store = services.NewStorageService(dynamodb.NewFromConfig(cfg), tableName)

	fetcher = services.NewJinaClient()
	extractor = services.NewOpenAIClient()
	geocoder = services.NewGoogleMapsClient()

	archive, err = services.NewArchiveClient(context.TODO())
	if err != nil {
		log.Printf("Archiving disabled: %v", err)
	}
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, sqsEvent events.SQSEvent) error {
	log.Printf("Processing %d SQS messages", len(sqsEvent.Records))

	for _, record := range sqsEvent.Records {
		if err := processMessage(ctx, record); err != nil {
			log.Printf("Failed to process message %s: %v", record.MessageId, err)
			return err // returning the error requeues the message
		}
	}
	return nil
}

func processMessage(ctx context.Context, record events.SQSMessage) error {
	var task models.CrawlTask
	if err := json.Unmarshal([]byte(record.Body), &task); err != nil {
		return fmt.Errorf("failed to unmarshal SQS message: %w", err)
	}
	if err := task.Validate(); err != nil {
		// A malformed task will never succeed; drop it instead of
		// requeueing forever.
		log.Printf("Dropping invalid task %s: %v", task.TaskID, err)
		return nil
	}

	return executeTask(ctx, &task)
}

func executeTask(ctx context.Context, task *models.CrawlTask) error {
	log.Printf("Starting task %s (%s)", task.TaskID, task.TaskType)

	task.Status = models.TaskStatusInProgress
	if err := store.UpdateCrawlTask(ctx, task); err != nil {
		return fmt.Errorf("failed to mark task in progress: %w", err)
	}

	var pipelineArchive services.Archiver
	if archive != nil {
		pipelineArchive = archive
	}
	pipeline := services.NewIngestionPipeline(services.PipelineConfig{
		Fetcher:   fetcher,
		Extractor: extractor,
		Geocoder:  geocoder,
		Store:     store,
		Archive:   pipelineArchive,
		DryRun:    task.DryRun,
		Source:    "task_executor",
	})

	var groups [][]string
	switch task.TaskType {
	case models.TaskTypeDiscoverAndIngest:
		crawler := services.NewDiscoveryCrawler(fetcher, extractor, store)
		discovered, err := crawler.Discover(ctx, task.StartURL)
		if err != nil {
			task.Status = models.TaskStatusFailed
			if updateErr := store.UpdateCrawlTask(ctx, task); updateErr != nil {
				log.Printf("Failed to mark task failed: %v", updateErr)
			}
			return fmt.Errorf("discovery failed for %s: %w", task.StartURL, err)
		}
		groups = discovered
	case models.TaskTypeIngestGroup:
		groups = [][]string{task.URLGroup}
	}

	summary, _ := pipeline.IngestBatch(ctx, groups, task.Limit)

	task.Status = models.TaskStatusCompleted
	task.Committed = summary.Committed
	task.Duplicates = summary.Duplicates
	task.Failed = summary.Failed
	task.SkippedPast = summary.SkippedPast
	task.CompletedAt = time.Now()
	if err := store.UpdateCrawlTask(ctx, task); err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}

	log.Printf("Task %s completed: committed=%d duplicates=%d failed=%d skipped_past=%d",
		task.TaskID, summary.Committed, summary.Duplicates, summary.Failed, summary.SkippedPast)
	return nil
}
