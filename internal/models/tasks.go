package models

import (
	"fmt"
	"time"
)

// Crawl task type constants
const (
	TaskTypeDiscoverAndIngest = "discover_and_ingest"
	TaskTypeIngestGroup       = "ingest_group"
)

// Crawl task status constants
const (
	TaskStatusScheduled  = "scheduled"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// CrawlTask represents one queued discovery or ingestion job. Each task
// runs to completion on a single worker; re-running a crawl command (or
// re-submitting the task) is the only retry mechanism, which the
// idempotent duplicate check makes safe.
type CrawlTask struct {
	PK string `json:"PK" dynamodbav:"PK"` // TASK#{task_id}
	SK string `json:"SK" dynamodbav:"SK"` // METADATA

	TaskID   string `json:"task_id" dynamodbav:"task_id"`
	TaskType string `json:"task_type" dynamodbav:"task_type"`

	// StartURL is set for discovery tasks; URLGroup for direct ingestion.
	StartURL string   `json:"start_url,omitempty" dynamodbav:"start_url,omitempty"`
	URLGroup []string `json:"url_group,omitempty" dynamodbav:"url_group,omitempty"`

	DryRun bool `json:"dry_run" dynamodbav:"dry_run"`
	Limit  int  `json:"limit,omitempty" dynamodbav:"limit,omitempty"`

	Status string `json:"status" dynamodbav:"status"`

	// Aggregate outcome counts, filled in on completion.
	Committed   int `json:"committed" dynamodbav:"committed"`
	Duplicates  int `json:"duplicates" dynamodbav:"duplicates"`
	Failed      int `json:"failed" dynamodbav:"failed"`
	SkippedPast int `json:"skipped_past" dynamodbav:"skipped_past"`

	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
	TTL         int64     `json:"TTL" dynamodbav:"TTL"`
}

// CreateTaskPK builds the primary key of a crawl task item.
func CreateTaskPK(taskID string) string {
	return "TASK#" + taskID
}

// CalculateTTL returns a Unix timestamp the given duration from now,
// used for DynamoDB auto-expiration of task records.
func CalculateTTL(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}

// ValidateTaskType checks if the task type is one of the known values.
func ValidateTaskType(taskType string) bool {
	switch taskType {
	case TaskTypeDiscoverAndIngest, TaskTypeIngestGroup:
		return true
	}
	return false
}

// Validate checks a task for the fields its type requires.
func (t *CrawlTask) Validate() error {
	if !ValidateTaskType(t.TaskType) {
		return fmt.Errorf("unknown task type %q", t.TaskType)
	}
	switch t.TaskType {
	case TaskTypeDiscoverAndIngest:
		if t.StartURL == "" {
			return fmt.Errorf("discover task requires a start URL")
		}
	case TaskTypeIngestGroup:
		if len(t.URLGroup) == 0 {
			return fmt.Errorf("ingest task requires at least one URL")
		}
	}
	return nil
}
