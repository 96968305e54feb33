package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveClient stores pipeline diagnostics in S3: raw extractor
// responses that failed to parse, and dry-run reports of what a real
// run would have written.
type ArchiveClient struct {
	client     *s3.Client
	bucketName string
}

// NewArchiveClient creates an archive client. The bucket name comes from
// ARCHIVE_BUCKET_NAME.
func NewArchiveClient(ctx context.Context) (*ArchiveClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	bucketName := os.Getenv("ARCHIVE_BUCKET_NAME")
	if bucketName == "" {
		bucketName = "openwater-events-diagnostics"
	}

	return &ArchiveClient{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
	}, nil
}

// NewArchiveClientWithS3 wraps an existing S3 client, used by tests and
// the Lambda entrypoints that already hold an AWS config.
func NewArchiveClientWithS3(client *s3.Client, bucketName string) *ArchiveClient {
	return &ArchiveClient{client: client, bucketName: bucketName}
}

// StoreRawExtraction archives the raw model response of a failed
// extraction so it can be inspected later. Keys are grouped by day.
func (a *ArchiveClient) StoreRawExtraction(ctx context.Context, sourceURL, raw string, extractErr error) (string, error) {
	record := map[string]interface{}{
		"source_url":  sourceURL,
		"error":       extractErr.Error(),
		"raw":         raw,
		"archived_at": time.Now().UTC().Format(time.RFC3339),
	}
	key := fmt.Sprintf("extraction-failures/%s/%d.json",
		time.Now().UTC().Format("2006-01-02"), time.Now().UnixNano())

	return key, a.putJSON(ctx, key, record)
}

// StoreDryRunReport archives the structured record of what a dry run
// would have written.
func (a *ArchiveClient) StoreDryRunReport(ctx context.Context, report interface{}) (string, error) {
	key := fmt.Sprintf("dry-run-reports/%s/%d.json",
		time.Now().UTC().Format("2006-01-02"), time.Now().UnixNano())

	return key, a.putJSON(ctx, key, report)
}

func (a *ArchiveClient) putJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive record: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
