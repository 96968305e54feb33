package models

import (
	"strings"
	"testing"
)

func TestGeneratePlaceIDDeterministic(t *testing.T) {
	first := GeneratePlaceID("Geneva", "CH", "Lake Geneva")
	second := GeneratePlaceID("Geneva", "CH", "Lake Geneva")
	if first != second {
		t.Errorf("Expected identical IDs for identical input, got %s and %s", first, second)
	}
	if !strings.HasPrefix(first, "plc_") {
		t.Errorf("Expected plc_ prefix, got %s", first)
	}

	// Case and surrounding whitespace must not change identity.
	folded := GeneratePlaceID("  geneva ", "ch", "LAKE GENEVA")
	if folded != first {
		t.Errorf("Expected case-insensitive ID, got %s vs %s", folded, first)
	}

	other := GeneratePlaceID("Nice", "FR", "Mediterranean")
	if other == first {
		t.Error("Different places produced the same ID")
	}
}

func TestGenerateEntityIDPrefixes(t *testing.T) {
	if id := GenerateOrganizerID("Ocean Swim Club"); !strings.HasPrefix(id, "org_") {
		t.Errorf("Expected org_ prefix, got %s", id)
	}
	if id := GenerateEventID("Lake Crossing", "2026-07-12", "plc_abc12345"); !strings.HasPrefix(id, "evt_") {
		t.Errorf("Expected evt_ prefix, got %s", id)
	}
	if id := GenerateRaceID("evt_abc12345", "2026-07-12", 2.5, "Morning Wave"); !strings.HasPrefix(id, "race_") {
		t.Errorf("Expected race_ prefix, got %s", id)
	}
}

func TestCreateEventGuardPK(t *testing.T) {
	pk := CreateEventGuardPK("plc_abc12345", "2026-07-12")
	if pk != "EVENTKEY#plc_abc12345#2026-07-12" {
		t.Errorf("Unexpected guard PK: %s", pk)
	}
}

func TestPopulateEventKeys(t *testing.T) {
	event := Event{
		ID:          "evt_abc12345",
		PlaceID:     "plc_abc12345",
		OrganizerID: "org_abc12345",
		DateStart:   "2026-07-12",
	}
	PopulateEventKeys(&event)

	if event.PK != "EVENT#evt_abc12345" {
		t.Errorf("Unexpected PK: %s", event.PK)
	}
	if event.SK != SKMetadata {
		t.Errorf("Unexpected SK: %s", event.SK)
	}
	if event.TypeKey != TypeKeyEvent {
		t.Errorf("Unexpected TypeKey: %s", event.TypeKey)
	}
	if event.DateKey != "2026-07-12" {
		t.Errorf("Unexpected DateKey: %s", event.DateKey)
	}
	if event.PlaceKey != "PLACE#plc_abc12345" {
		t.Errorf("Unexpected PlaceKey: %s", event.PlaceKey)
	}
	if event.OrganizerKey != "ORGANIZER#org_abc12345" {
		t.Errorf("Unexpected OrganizerKey: %s", event.OrganizerKey)
	}
}

func TestPopulateEventKeysWithoutOrganizer(t *testing.T) {
	event := Event{ID: "evt_abc12345", PlaceID: "plc_abc12345", DateStart: "2026-07-12"}
	PopulateEventKeys(&event)
	if event.OrganizerKey != "" {
		t.Errorf("Expected empty OrganizerKey, got %s", event.OrganizerKey)
	}
}

func TestParseISODate(t *testing.T) {
	if _, err := ParseISODate("2026-07-12"); err != nil {
		t.Errorf("Expected valid date to parse, got %v", err)
	}
	for _, bad := range []string{"", "12/07/2026", "2026-7-12", "July 12, 2026"} {
		if _, err := ParseISODate(bad); err == nil {
			t.Errorf("Expected %q to fail parsing", bad)
		}
	}
}

func TestCountryCode(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"France", "FR"},
		{"france", "FR"},
		{"Switzerland", "CH"},
		{"United Kingdom", "GB"},
		{"FR", "FR"},
		{"Atlantis", ""},
	}
	for _, tt := range tests {
		if got := CountryCode(tt.name); got != tt.expected {
			t.Errorf("CountryCode(%q) = %q, expected %q", tt.name, got, tt.expected)
		}
	}
}
