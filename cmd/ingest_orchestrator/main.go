package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"openwater-events-scraper/internal/models"
	"openwater-events-scraper/internal/services"
)

// OrchestratorEvent is the Lambda input. Scheduled triggers carry the
// standing list of start URLs; manual triggers can target specific URL
// groups instead.
type OrchestratorEvent struct {
	TriggerType string     `json:"trigger_type"` // scheduled, manual
	StartURLs   []string   `json:"start_urls,omitempty"`
	URLGroups   [][]string `json:"url_groups,omitempty"`
	DryRun      bool       `json:"dry_run,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

// OrchestratorResponse is the Lambda output.
type OrchestratorResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type responseBody struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	TasksScheduled int      `json:"tasks_scheduled"`
	TaskIDs        []string `json:"task_ids,omitempty"`
	Error          string   `json:"error,omitempty"`
}

var (
	store        *services.StorageService
	sqsClient    *sqs.Client
	taskQueueURL string
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

	sqsClient = sqs.NewFromConfig(cfg)
	taskQueueURL = os.Getenv("CRAWL_TASK_QUEUE_URL")
	if taskQueueURL == "" {
		log.Fatal("CRAWL_TASK_QUEUE_URL environment variable is required")
	}

	log.Printf("Orchestrator initialized with task queue: %s", taskQueueURL)
}

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event OrchestratorEvent) (OrchestratorResponse, error) {
	log.Printf("Processing orchestration request: trigger=%s, start_urls=%d, url_groups=%d",
		event.TriggerType, len(event.StartURLs), len(event.URLGroups))

	var tasks []*models.CrawlTask
	for _, startURL := range event.StartURLs {
		tasks = append(tasks, &models.CrawlTask{
			TaskID:   uuid.New().String(),
			TaskType: models.TaskTypeDiscoverAndIngest,
			StartURL: startURL,
			DryRun:   event.DryRun,
			Limit:    event.Limit,
			Status:   models.TaskStatusScheduled,
		})
	}
	for _, group := range event.URLGroups {
		tasks = append(tasks, &models.CrawlTask{
			TaskID:   uuid.New().String(),
			TaskType: models.TaskTypeIngestGroup,
			URLGroup: group,
			DryRun:   event.DryRun,
			Status:   models.TaskStatusScheduled,
		})
	}

	if len(tasks) == 0 {
		return createErrorResponse(400, "nothing to schedule: provide start_urls or url_groups")
	}

	var taskIDs []string
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return createErrorResponse(400, fmt.Sprintf("invalid task: %v", err))
		}
		if err := store.CreateCrawlTask(ctx, task); err != nil {
			log.Printf("Failed to store task %s: %v", task.TaskID, err)
			return createErrorResponse(500, fmt.Sprintf("failed to store task: %v", err))
		}
		if err := sendTaskToQueue(ctx, task); err != nil {
			log.Printf("Failed to enqueue task %s: %v", task.TaskID, err)
			return createErrorResponse(500, fmt.Sprintf("failed to enqueue task: %v", err))
		}
		taskIDs = append(taskIDs, task.TaskID)
	}

	log.Printf("Scheduled %d crawl tasks", len(taskIDs))
	return createSuccessResponse(responseBody{
		Success:        true,
		Message:        fmt.Sprintf("Scheduled %d crawl tasks", len(taskIDs)),
		TasksScheduled: len(taskIDs),
		TaskIDs:        taskIDs,
	})
}

func sendTaskToQueue(ctx context.Context, task *models.CrawlTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(taskQueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}
	return nil
}

func createSuccessResponse(body responseBody) (OrchestratorResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return OrchestratorResponse{}, fmt.Errorf("failed to marshal response: %w", err)
	}
	return OrchestratorResponse{StatusCode: 200, Body: string(payload)}, nil
}

func createErrorResponse(statusCode int, message string) (OrchestratorResponse, error) {
	payload, _ := json.Marshal(responseBody{Success: false, Error: message})
	return OrchestratorResponse{StatusCode: statusCode, Body: string(payload)}, nil
}
