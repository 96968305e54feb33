package services

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// JinaClient fetches rendered page content through the Jina AI Reader.
// Event pages are frequently script-heavy; the reader returns clean
// markdown after a render wait, which is what the extractor wants.
type JinaClient struct {
	httpClient  *http.Client
	baseURL     string
	userAgents  []string
	retryConfig RetryConfig
}

// RetryConfig defines transport-level retry behavior for failed requests.
// These retries belong to the fetch adapter; the pipeline itself never
// retries a failed candidate.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NewJinaClient creates a new Jina AI Reader client.
func NewJinaClient() *JinaClient {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
		DisableKeepAlives: false,
		IdleConnTimeout:   90 * time.Second,
	}

	return &JinaClient{
		httpClient: &http.Client{
			Timeout:   45 * time.Second, // registration platforms can be slow to render
			Transport: transport,
		},
		baseURL: "https://r.jina.ai",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		retryConfig: RetryConfig{
			MaxRetries:    3,
			InitialDelay:  1 * time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
		},
	}
}

// NewJinaClientWithTimeout creates a Jina client with a custom timeout.
func NewJinaClientWithTimeout(timeout time.Duration) *JinaClient {
	client := NewJinaClient()
	client.httpClient.Timeout = timeout
	return client
}

// Fetch returns the rendered content of a page. A final failure after
// all transport retries wraps ErrTransientFetch.
func (j *JinaClient) Fetch(ctx context.Context, url string) (string, error) {
	if err := j.ValidateURL(url); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= j.retryConfig.MaxRetries; attempt++ {
		content, err := j.attemptFetch(ctx, url, attempt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		// Client errors will not get better on retry.
		if strings.Contains(err.Error(), "status 4") {
			break
		}

		if attempt < j.retryConfig.MaxRetries {
			time.Sleep(j.calculateDelay(attempt))
		}
	}

	return "", fmt.Errorf("%w: %s after %d attempts: %v",
		ErrTransientFetch, url, j.retryConfig.MaxRetries+1, lastErr)
}

// attemptFetch performs a single fetch attempt.
func (j *JinaClient) attemptFetch(ctx context.Context, url string, attempt int) (string, error) {
	readerURL := fmt.Sprintf("%s/%s", j.baseURL, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	j.setHeaders(req, attempt)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reader request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("reader returned status %d: %s", resp.StatusCode, string(body))
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read reader response: %w", err)
	}

	contentStr := string(content)
	if len(contentStr) < 100 {
		return "", fmt.Errorf("content too short (%d chars), likely an error page", len(contentStr))
	}

	return contentStr, nil
}

// setHeaders sets realistic browser headers; the user agent rotates on
// retries for sites with anti-scraping measures.
func (j *JinaClient) setHeaders(req *http.Request, attempt int) {
	req.Header.Set("User-Agent", j.userAgents[attempt%len(j.userAgents)])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")

	if attempt > 0 {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
}

// calculateDelay computes the exponential backoff delay with jitter.
func (j *JinaClient) calculateDelay(attempt int) time.Duration {
	delay := float64(j.retryConfig.InitialDelay)*
		math.Pow(j.retryConfig.BackoffFactor, float64(attempt)) +
		(rand.Float64() * 0.1 * float64(j.retryConfig.InitialDelay))

	if delay > float64(j.retryConfig.MaxDelay) {
		delay = float64(j.retryConfig.MaxDelay)
	}
	return time.Duration(delay)
}

// ValidateURL performs basic URL validation before hitting the reader.
func (j *JinaClient) ValidateURL(url string) error {
	if url == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if len(url) > 2048 {
		return fmt.Errorf("URL too long: %d characters", len(url))
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	return nil
}
