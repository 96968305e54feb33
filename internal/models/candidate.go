package models

import (
	"fmt"
	"strings"
)

// ExtractedEvent is the not-yet-resolved structured output of one
// extraction run. It exists only for the duration of one pipeline pass;
// nothing in it has been checked against the store yet.
type ExtractedEvent struct {
	Event ExtractedEventFields `json:"event"`
	Races []ExtractedRace      `json:"races"`
}

// ExtractedEventFields holds the event-level fields of an extraction.
// Pointer fields distinguish "not provided" from real values.
type ExtractedEventFields struct {
	Name      string `json:"name"`
	Website   string `json:"website"`
	DateStart string `json:"date_start"`
	DateEnd   string `json:"date_end"`

	Location  ExtractedLocation  `json:"location"`
	Organizer ExtractedOrganizer `json:"organizer"`

	NeedsMedicalCertificate *bool    `json:"needs_medical_certificate"`
	NeedsLicense            *bool    `json:"needs_license"`
	SoldOut                 *bool    `json:"sold_out"`
	Cancelled               *bool    `json:"cancelled"`
	WithRanking             *bool    `json:"with_ranking"`
	WaterTemp               *float64 `json:"water_temp"`

	Description string `json:"description"`
}

// ExtractedLocation holds the raw location fields before geocoding and
// proximity resolution.
type ExtractedLocation struct {
	City      string `json:"city"`
	Country   string `json:"country"` // country name as written on the page
	WaterName string `json:"water_name"`
	WaterType string `json:"water_type"`
	Address   string `json:"address"`
}

// ExtractedOrganizer holds the raw organizer fields before fuzzy
// resolution.
type ExtractedOrganizer struct {
	Name string `json:"name"`
}

// ExtractedRace holds one raw race entry.
type ExtractedRace struct {
	Name     string  `json:"name"`
	Date     string  `json:"date"`
	RaceTime string  `json:"race_time"`
	Distance float64 `json:"distance"`
	Wetsuit  string  `json:"wetsuit"`
	Price    *Price  `json:"price"`
}

// Validate rejects payloads that are missing required keys or carry
// values outside the schema, so that partial data never travels deeper
// into the pipeline. Missing city/country is not checked here: that is a
// location-resolution concern with its own failure classification.
func (e *ExtractedEvent) Validate() []string {
	var issues []string

	if strings.TrimSpace(e.Event.Name) == "" {
		issues = append(issues, "missing event name")
	}
	if e.Event.DateStart == "" {
		issues = append(issues, "missing date_start")
	} else if _, err := ParseISODate(e.Event.DateStart); err != nil {
		issues = append(issues, fmt.Sprintf("unparsable date_start %q", e.Event.DateStart))
	}
	if e.Event.DateEnd != "" {
		if _, err := ParseISODate(e.Event.DateEnd); err != nil {
			issues = append(issues, fmt.Sprintf("unparsable date_end %q", e.Event.DateEnd))
		}
	}
	if !ValidateWaterType(e.Event.Location.WaterType) {
		issues = append(issues, fmt.Sprintf("invalid water_type %q", e.Event.Location.WaterType))
	}

	for i, race := range e.Races {
		prefix := fmt.Sprintf("race %d:", i+1)
		if race.Date == "" {
			issues = append(issues, prefix+" missing date")
		} else if _, err := ParseISODate(race.Date); err != nil {
			issues = append(issues, fmt.Sprintf("%s unparsable date %q", prefix, race.Date))
		}
		if race.Distance <= 0 {
			issues = append(issues, prefix+" missing or non-positive distance")
		}
		if !ValidateWetsuit(race.Wetsuit) {
			issues = append(issues, fmt.Sprintf("%s invalid wetsuit %q", prefix, race.Wetsuit))
		}
	}

	return issues
}

// HasLocation reports whether the extraction carries the fields required
// to resolve a place.
func (e *ExtractedEvent) HasLocation() bool {
	return strings.TrimSpace(e.Event.Location.City) != "" &&
		strings.TrimSpace(e.Event.Location.Country) != ""
}
