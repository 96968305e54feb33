package services

import (
	"encoding/json"
	"strings"
	"testing"

	"openwater-events-scraper/internal/models"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain json", `{"event": {}}`, `{"event": {}}`},
		{"json fence", "```json\n{\"event\": {}}\n```", `{"event": {}}`},
		{"bare fence", "```\n{\"event\": {}}\n```", `{"event": {}}`},
		{"surrounding whitespace", "  \n{\"event\": {}}\n  ", `{"event": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSONResponse(tt.input); got != tt.expected {
				t.Errorf("cleanJSONResponse(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

// The documented response shape in the prompt must round-trip into the
// extraction model without losing fields.
func TestEventPromptExampleMatchesModel(t *testing.T) {
	example := `{
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
			"organizer": {"name": "OCEANMAN"},
			"needs_medical_certificate": true,
			"needs_license": false,
			"water_temp": 28.5
		},
		"races": [{
			"name": "10 km Open Water Race",
			"date": "2024-07-15",
			"race_time": "09:00:00",
			"distance": 10.0,
			"wetsuit": "optional",
			"price": {"amount": 50.0, "currency": "EUR"}
		}]
	}`

	var extracted models.ExtractedEvent
	if err := json.Unmarshal([]byte(example), &extracted); err != nil {
		t.Fatalf("Prompt example failed to unmarshal: %v", err)
	}

	if extracted.Event.Name != "OCEANMAN Phuket 2024" {
		t.Errorf("Unexpected name: %s", extracted.Event.Name)
	}
	if extracted.Event.Location.WaterType != models.WaterTypeSea {
		t.Errorf("Unexpected water type: %s", extracted.Event.Location.WaterType)
	}
	if extracted.Event.NeedsMedicalCertificate == nil || !*extracted.Event.NeedsMedicalCertificate {
		t.Error("Expected needs_medical_certificate to be true")
	}
	if extracted.Event.SoldOut != nil {
		t.Error("Expected omitted sold_out to stay nil")
	}
	if extracted.Event.WaterTemp == nil || *extracted.Event.WaterTemp != 28.5 {
		t.Error("Expected water_temp 28.5")
	}
	if len(extracted.Races) != 1 {
		t.Fatalf("Expected 1 race, got %d", len(extracted.Races))
	}
	race := extracted.Races[0]
	if race.Distance != 10.0 || race.Wetsuit != models.WetsuitOptional {
		t.Errorf("Unexpected race fields: %+v", race)
	}
	if race.Price == nil || race.Price.Amount != 50.0 || race.Price.Currency != "EUR" {
		t.Errorf("Unexpected price: %+v", race.Price)
	}

	if issues := extracted.Validate(); len(issues) != 0 {
		t.Errorf("Prompt example must validate cleanly, got %v", issues)
	}
}

func TestBuildEventSystemPrompt(t *testing.T) {
	prompt := buildEventSystemPrompt("2026-03-01")

	for _, required := range []string{
		"2026-03-01",
		"date_start",
		"water_type",
		"wetsuit",
		"YYYY-MM-DD",
	} {
		if !strings.Contains(prompt, required) {
			t.Errorf("Expected prompt to mention %q", required)
		}
	}
}

func TestBuildDiscoverySystemPrompt(t *testing.T) {
	prompt := buildDiscoverySystemPrompt("2026-03-01")

	for _, required := range []string{
		"2026-03-01",
		"urls",
		"Europe",
	} {
		if !strings.Contains(prompt, required) {
			t.Errorf("Expected discovery prompt to mention %q", required)
		}
	}
}

func TestBuildEventUserPromptIncludesAllPages(t *testing.T) {
	pages := []PageContent{
		{URL: "https://example.com/info", Content: "info page"},
		{URL: "https://example.com/register", Content: "registration page"},
	}
	prompt := buildEventUserPrompt(pages)

	for _, page := range pages {
		if !strings.Contains(prompt, page.URL) || !strings.Contains(prompt, page.Content) {
			t.Errorf("Expected prompt to include page %s", page.URL)
		}
	}
}
