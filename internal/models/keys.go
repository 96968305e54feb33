package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SK value shared by all single-item entities
const SKMetadata = "METADATA"

// GeneratePlaceID creates a deterministic ID for a place from its core
// attributes. Geocoded coordinates are deliberately excluded so that two
// geocoding runs with slightly different results produce the same ID.
func GeneratePlaceID(city, country, waterName string) string {
	input := fmt.Sprintf("%s|%s|%s",
		normalize(city), normalize(country), normalize(waterName))
	hash := sha256.Sum256([]byte(input))
	return "plc_" + hex.EncodeToString(hash[:])[:8]
}

// GenerateOrganizerID creates a deterministic ID for an organizer.
func GenerateOrganizerID(name string) string {
	hash := sha256.Sum256([]byte(normalize(name)))
	return "org_" + hex.EncodeToString(hash[:])[:8]
}

// GenerateEventID creates a deterministic ID for an event based on its
// name, start date and place.
func GenerateEventID(name, dateStart, placeID string) string {
	input := fmt.Sprintf("%s|%s|%s", normalize(name), normalize(dateStart), placeID)
	hash := sha256.Sum256([]byte(input))
	return "evt_" + hex.EncodeToString(hash[:])[:8]
}

// GenerateRaceID creates a deterministic ID for a race within an event.
func GenerateRaceID(eventID, date string, distance float64, name string) string {
	input := fmt.Sprintf("%s|%s|%.3f|%s", eventID, normalize(date), distance, normalize(name))
	hash := sha256.Sum256([]byte(input))
	return "race_" + hex.EncodeToString(hash[:])[:8]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Primary key constructors

func CreatePlacePK(placeID string) string {
	return "PLACE#" + placeID
}

func CreateOrganizerPK(organizerID string) string {
	return "ORGANIZER#" + organizerID
}

func CreateEventPK(eventID string) string {
	return "EVENT#" + eventID
}

func CreateRaceSK(raceID string) string {
	return "RACE#" + raceID
}

// CreateEventGuardPK builds the primary key of the uniqueness guard item
// written in the same transaction as a new event. The conditional put on
// this key is what turns a racing duplicate commit into a rejected write.
func CreateEventGuardPK(placeID, dateStart string) string {
	return fmt.Sprintf("EVENTKEY#%s#%s", placeID, dateStart)
}

// GeneratePlaceKey builds the place GSI key for an event.
func GeneratePlaceKey(placeID string) string {
	return "PLACE#" + placeID
}

// GenerateOrganizerKey builds the organizer GSI key for an event.
func GenerateOrganizerKey(organizerID string) string {
	return "ORGANIZER#" + organizerID
}

// PopulatePlaceKeys fills the table and GSI keys of a place.
func PopulatePlaceKeys(p *Place) {
	p.PK = CreatePlacePK(p.ID)
	p.SK = SKMetadata
	p.TypeKey = TypeKeyPlace
	// Places have no natural date; the city keeps the GSI sort key stable.
	p.DateKey = normalize(p.City)
}

// PopulateOrganizerKeys fills the table and GSI keys of an organizer.
func PopulateOrganizerKeys(o *Organizer) {
	o.PK = CreateOrganizerPK(o.ID)
	o.SK = SKMetadata
	o.TypeKey = TypeKeyOrganizer
	o.DateKey = normalize(o.Name)
}

// PopulateEventKeys fills the table and GSI keys of an event.
func PopulateEventKeys(e *Event) {
	e.PK = CreateEventPK(e.ID)
	e.SK = SKMetadata
	e.TypeKey = TypeKeyEvent
	e.DateKey = e.DateStart
	e.PlaceKey = GeneratePlaceKey(e.PlaceID)
	if e.OrganizerID != "" {
		e.OrganizerKey = GenerateOrganizerKey(e.OrganizerID)
	}
}

// PopulateRaceKeys fills the table keys of a race.
func PopulateRaceKeys(r *Race) {
	r.PK = CreateEventPK(r.EventID)
	r.SK = CreateRaceSK(r.ID)
}

// ISODate is the date layout used throughout the store and the extractor
// schema.
const ISODate = "2006-01-02"

// ParseISODate parses an ISO date string (YYYY-MM-DD).
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatISODate formats a time as an ISO date string.
func FormatISODate(t time.Time) string {
	return t.Format(ISODate)
}
