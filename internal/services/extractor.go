package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"openwater-events-scraper/internal/models"
)

// PageContent pairs a fetched page with the URL it came from.
type PageContent struct {
	URL     string
	Content string
}

// OpenAIClient turns page content into structured swim event records.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates a new OpenAI-backed extractor. A missing API
// key is a fatal configuration error.
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		model:       "gpt-4o",
		temperature: 0.1,
		maxTokens:   4000,
	}
}

// NewOpenAIClientWithConfig creates an extractor with custom model settings.
func NewOpenAIClientWithConfig(model string, temperature float32, maxTokens int) *OpenAIClient {
	client := NewOpenAIClient()
	client.model = model
	client.temperature = temperature
	client.maxTokens = maxTokens
	return client
}

// ExtractEvent analyzes the combined content of a URL group and returns
// one structured event record. The raw model response is always returned,
// even on failure, so the caller can archive it for diagnostics. A
// non-nil error wraps ErrExtraction.
func (o *OpenAIClient) ExtractEvent(ctx context.Context, pages []PageContent, today string) (*models.ExtractedEvent, string, error) {
	if len(pages) == 0 {
		return nil, "", fmt.Errorf("%w: no page content", ErrExtraction)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildEventSystemPrompt(today)},
			{Role: openai.ChatMessageRoleUser, Content: buildEventUserPrompt(pages)},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: openai request failed: %v", ErrExtraction, err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("%w: no response choices", ErrExtraction)
	}

	raw := resp.Choices[0].Message.Content
	cleaned := cleanJSONResponse(raw)

	var extracted models.ExtractedEvent
	if err := json.Unmarshal([]byte(cleaned), &extracted); err != nil {
		return nil, raw, fmt.Errorf("%w: unparsable response JSON: %v", ErrExtraction, err)
	}

	if issues := extracted.Validate(); len(issues) > 0 {
		return nil, raw, fmt.Errorf("%w: schema-incomplete payload: %s",
			ErrExtraction, strings.Join(issues, "; "))
	}

	return &extracted, raw, nil
}

// discoveredEvents mirrors the JSON shape of the discovery prompt.
type discoveredEvents struct {
	Events []struct {
		URLs     []string `json:"urls"`
		Name     string   `json:"name"`
		Location string   `json:"location"`
	} `json:"events"`
}

// DiscoverEvents analyzes a listing page and returns groups of URLs,
// each group believed to describe one distinct future event.
func (o *OpenAIClient) DiscoverEvents(ctx context.Context, pageContent, startURL, today string) ([][]string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildDiscoverySystemPrompt(today)},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Listing page URL: %s\n\nPage content:\n%s",
					startURL, pageContent),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai request failed: %v", ErrExtraction, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices", ErrExtraction)
	}

	cleaned := cleanJSONResponse(resp.Choices[0].Message.Content)

	var discovered discoveredEvents
	if err := json.Unmarshal([]byte(cleaned), &discovered); err != nil {
		return nil, fmt.Errorf("%w: unparsable discovery JSON: %v", ErrExtraction, err)
	}

	var groups [][]string
	for _, event := range discovered.Events {
		var validURLs []string
		for _, url := range event.URLs {
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				log.Printf("Skipping invalid URL for %q: %s", event.Name, url)
				continue
			}
			validURLs = append(validURLs, url)
		}
		if len(validURLs) > 0 {
			groups = append(groups, validURLs)
		}
	}

	return groups, nil
}

// buildEventSystemPrompt creates the system prompt for single-event
// extraction.
func buildEventSystemPrompt(today string) string {
	return fmt.Sprintf(`You are an expert at extracting structured data about open water swimming events from web content.

You will receive the content of one or more pages that all describe the SAME event (for example an info page and a registration page). Combine the information from all pages into one complete event profile.

Today's date is %s. If the event has already occurred (before today's date), still return it; the date will be checked downstream.

To find out the price of the races, prefer the registration page ("Anmeldung" or "Ausschreibung") or the page where tickets are sold.

If the event is virtual or has no physical location, leave the location fields null.

OUTPUT FORMAT:
Return a JSON object with this exact structure:
{
    "event": {
        "name": "OCEANMAN Phuket 2024",
        "website": "https://oceanmanswim.com/phuket-thailand/",
        "date_start": "2024-07-15",
        "date_end": "2024-07-15",
        "location": {
            "city": "Phuket",
            "country": "Thailand",
            "water_name": "Andaman Sea",
            "water_type": "sea",
            "address": "123 Beach Road, Phuket"
        },
        "organizer": {
            "name": "OCEANMAN"
        },
        "needs_medical_certificate": true,
        "needs_license": false,
        "sold_out": false,
        "cancelled": false,
        "with_ranking": true,
        "water_temp": 28.5,
        "description": "Public description of the event."
    },
    "races": [{
        "name": "10 km Open Water Race",
        "date": "2024-07-15",
        "race_time": "09:00:00",
        "distance": 10.0,
        "wetsuit": "optional",
        "price": {
            "amount": 50.0,
            "currency": "EUR"
        }
    }]
}

EXTRACTION RULES:
- Do not make up details not present in the content; return null for anything not found
- Dates in YYYY-MM-DD, race times in HH:MM:SS local time, distances in kilometers
- There are usually multiple races per swim event
- For the wetsuit field, only use: "compulsory", "optional", "prohibited"
- For the water_type field, only use: "river", "sea", "lake", "pool"
- Do not return any comments in the JSON

Focus on accuracy over completeness. A null field is better than a guessed one.`, today)
}

// buildEventUserPrompt concatenates the fetched pages for the model.
func buildEventUserPrompt(pages []PageContent) string {
	var sb strings.Builder
	sb.WriteString("Analyze these pages about an open water swimming event and extract one combined event profile as JSON.\n")
	for _, page := range pages {
		sb.WriteString(fmt.Sprintf("\n--- Page: %s ---\n%s\n", page.URL, page.Content))
	}
	return sb.String()
}

// buildDiscoverySystemPrompt creates the system prompt for discovery mode.
func buildDiscoverySystemPrompt(today string) string {
	return fmt.Sprintf(`You analyze a listing page of open water swimming events and find the URLs of individual events. Some events have multiple URLs (e.g. a registration page and an info page); group those together.

Today's date is %s. Only include events that will take place in the future (after today's date).

Only include events located in Europe or northern Africa (Morocco, Algeria, Tunisia, Libya, Egypt).

Return the information as JSON in the following format:
{
    "events": [
        {
            "urls": ["https://event1-info.com", "https://event1-registration.com"],
            "name": "Event 1 name",
            "location": "Paris, France"
        }
    ]
}

Make sure to:
1. Only include URLs that lead to specific event pages
2. Group URLs that belong to the same event together
3. Follow pagination or "Load More" links referenced in the content
4. Make URLs absolute, not relative
5. Only include URLs from the same domain or known registration platforms`, today)
}

// cleanJSONResponse strips markdown code fences the model sometimes wraps
// around its JSON output.
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
