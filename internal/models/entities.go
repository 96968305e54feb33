package models

import "time"

// Place represents a canonical physical location where swim events happen.
// Two places within the configured proximity threshold of each other are
// considered the same place and must never both exist.
type Place struct {
	PK string `json:"PK" dynamodbav:"PK"`
	SK string `json:"SK" dynamodbav:"SK"`

	ID          string   `json:"id" dynamodbav:"id"`
	City        string   `json:"city" dynamodbav:"city"`
	Country     string   `json:"country" dynamodbav:"country"` // ISO 3166-1 alpha-2
	WaterName   string   `json:"water_name,omitempty" dynamodbav:"water_name,omitempty"`
	WaterType   string   `json:"water_type,omitempty" dynamodbav:"water_type,omitempty"` // river|sea|lake|pool
	Lat         *float64 `json:"lat,omitempty" dynamodbav:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty" dynamodbav:"lng,omitempty"`
	Address     string   `json:"address,omitempty" dynamodbav:"address,omitempty"`
	HeaderPhoto string   `json:"header_photo,omitempty" dynamodbav:"header_photo,omitempty"`

	VerifiedAt *time.Time `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" dynamodbav:"updated_at"`

	// GSI keys
	TypeKey string `json:"TypeKey" dynamodbav:"TypeKey"`
	DateKey string `json:"DateKey" dynamodbav:"DateKey"`
}

// IsVerified reports whether an operator has confirmed this place.
func (p *Place) IsVerified() bool {
	return p.VerifiedAt != nil
}

// HasCoordinates reports whether the place has been geocoded.
func (p *Place) HasCoordinates() bool {
	return p.Lat != nil && p.Lng != nil
}

// Organizer represents the party organizing one or more events.
type Organizer struct {
	PK string `json:"PK" dynamodbav:"PK"`
	SK string `json:"SK" dynamodbav:"SK"`

	ID             string `json:"id" dynamodbav:"id"`
	Name           string `json:"name" dynamodbav:"name"`
	Website        string `json:"website,omitempty" dynamodbav:"website,omitempty"`
	Email          string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	ContactFormURL string `json:"contact_form_url,omitempty" dynamodbav:"contact_form_url,omitempty"`
	ContactStatus  string `json:"contact_status,omitempty" dynamodbav:"contact_status,omitempty"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`

	TypeKey string `json:"TypeKey" dynamodbav:"TypeKey"`
	DateKey string `json:"DateKey" dynamodbav:"DateKey"`
}

// Event represents one scheduled swim happening at one place.
// No two events may share the same (PlaceID, DateStart) pair.
type Event struct {
	PK string `json:"PK" dynamodbav:"PK"`
	SK string `json:"SK" dynamodbav:"SK"`

	ID          string `json:"id" dynamodbav:"id"`
	Name        string `json:"name" dynamodbav:"name"`
	Website     string `json:"website,omitempty" dynamodbav:"website,omitempty"`
	PlaceID     string `json:"place_id" dynamodbav:"place_id"`
	OrganizerID string `json:"organizer_id,omitempty" dynamodbav:"organizer_id,omitempty"`

	DateStart string `json:"date_start" dynamodbav:"date_start"` // ISO date (YYYY-MM-DD)
	DateEnd   string `json:"date_end" dynamodbav:"date_end"`

	NeedsMedicalCertificate *bool    `json:"needs_medical_certificate,omitempty" dynamodbav:"needs_medical_certificate,omitempty"`
	NeedsLicense            *bool    `json:"needs_license,omitempty" dynamodbav:"needs_license,omitempty"`
	SoldOut                 *bool    `json:"sold_out,omitempty" dynamodbav:"sold_out,omitempty"`
	Cancelled               *bool    `json:"cancelled,omitempty" dynamodbav:"cancelled,omitempty"`
	WithRanking             *bool    `json:"with_ranking,omitempty" dynamodbav:"with_ranking,omitempty"`
	WaterTemp               *float64 `json:"water_temp,omitempty" dynamodbav:"water_temp,omitempty"`

	Description string `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Invisible   bool   `json:"invisible" dynamodbav:"invisible"`
	Source      string `json:"source,omitempty" dynamodbav:"source,omitempty"`

	// PreviousEditionID links to the prior-year event of the same series.
	PreviousEditionID string `json:"previous_edition_id,omitempty" dynamodbav:"previous_edition_id,omitempty"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`

	// GSI keys
	TypeKey      string `json:"TypeKey" dynamodbav:"TypeKey"`
	DateKey      string `json:"DateKey" dynamodbav:"DateKey"`
	OrganizerKey string `json:"OrganizerKey,omitempty" dynamodbav:"OrganizerKey,omitempty"`
	PlaceKey     string `json:"PlaceKey" dynamodbav:"PlaceKey"`
}

// Race represents a single race within an event. Races are owned by their
// event and are deleted and recreated as a set when the event is refreshed.
type Race struct {
	PK string `json:"PK" dynamodbav:"PK"`
	SK string `json:"SK" dynamodbav:"SK"`

	ID       string  `json:"id" dynamodbav:"id"`
	EventID  string  `json:"event_id" dynamodbav:"event_id"`
	Date     string  `json:"date" dynamodbav:"date"` // ISO date, local time
	RaceTime string  `json:"race_time,omitempty" dynamodbav:"race_time,omitempty"`
	Distance float64 `json:"distance" dynamodbav:"distance"` // kilometers
	Name     string  `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Wetsuit  string  `json:"wetsuit,omitempty" dynamodbav:"wetsuit,omitempty"`
	Price    *Price  `json:"price,omitempty" dynamodbav:"price,omitempty"`
}

// Price is a monetary amount with its currency.
type Price struct {
	Amount   float64 `json:"amount" dynamodbav:"amount"`
	Currency string  `json:"currency" dynamodbav:"currency"`
}

// Water type constants
const (
	WaterTypeRiver = "river"
	WaterTypeSea   = "sea"
	WaterTypeLake  = "lake"
	WaterTypePool  = "pool"
)

// Wetsuit requirement constants
const (
	WetsuitCompulsory = "compulsory"
	WetsuitOptional   = "optional"
	WetsuitProhibited = "prohibited"
)

// Organizer contact status constants
const (
	ContactStatusPending     = "pending"
	ContactStatusContacted   = "contacted"
	ContactStatusResponded   = "responded"
	ContactStatusCompleted   = "completed"
	ContactStatusFailed      = "failed"
	ContactStatusNeedsReview = "needs_review"
)

// Entity type keys for the type-date GSI
const (
	TypeKeyPlace     = "PLACE"
	TypeKeyOrganizer = "ORGANIZER"
	TypeKeyEvent     = "EVENT"
)

// ValidateWaterType checks if the water type is one of the known values.
// The empty string is allowed (extractor returned "not provided").
func ValidateWaterType(waterType string) bool {
	switch waterType {
	case "", WaterTypeRiver, WaterTypeSea, WaterTypeLake, WaterTypePool:
		return true
	}
	return false
}

// ValidateWetsuit checks if the wetsuit requirement is one of the known values.
func ValidateWetsuit(wetsuit string) bool {
	switch wetsuit {
	case "", WetsuitCompulsory, WetsuitOptional, WetsuitProhibited:
		return true
	}
	return false
}

// ValidateContactStatus checks if the organizer contact status is valid.
func ValidateContactStatus(status string) bool {
	switch status {
	case ContactStatusPending, ContactStatusContacted, ContactStatusResponded,
		ContactStatusCompleted, ContactStatusFailed, ContactStatusNeedsReview:
		return true
	}
	return false
}
