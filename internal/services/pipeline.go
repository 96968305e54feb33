package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"openwater-events-scraper/internal/models"
)

// Pipeline states. No state is re-entered; a failure at any step
// transitions directly to the terminal outcome.
const (
	StateFetching           = "FETCHING"
	StateExtracting         = "EXTRACTING"
	StateValidating         = "VALIDATING"
	StateResolvingPlace     = "RESOLVING_PLACE"
	StateResolvingOrganizer = "RESOLVING_ORGANIZER"
	StateCheckingDuplicate  = "CHECKING_DUPLICATE"
	StateCommitting         = "COMMITTING"
)

// Terminal outcomes of one candidate.
const (
	OutcomeCommitted        = "COMMITTED"
	OutcomeSkippedDuplicate = "SKIPPED_DUPLICATE"
	OutcomeSkippedPast      = "SKIPPED_PAST"
	OutcomeFailed           = "FAILED"
)

// PageFetcher fetches rendered page content.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// EventExtractor turns page content into structured records.
type EventExtractor interface {
	ExtractEvent(ctx context.Context, pages []PageContent, today string) (*models.ExtractedEvent, string, error)
	DiscoverEvents(ctx context.Context, pageContent, startURL, today string) ([][]string, error)
}

// Geocoder resolves free-text place descriptions to coordinates and
// finds nearby points of interest.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*GeocodeResult, error)
	NearbyPlacePhoto(ctx context.Context, lat, lng float64, waterTypeHint string) (string, error)
}

// EventStore is the persistence surface the pipeline writes through.
type EventStore interface {
	PlaceReader
	ListPlaces(ctx context.Context) ([]models.Place, error)
	CreatePlace(ctx context.Context, place *models.Place) error
	UpdatePlace(ctx context.Context, place *models.Place) error
	ListOrganizers(ctx context.Context) ([]models.Organizer, error)
	CreateOrganizer(ctx context.Context, organizer *models.Organizer) error
	EventExistsAt(ctx context.Context, placeID, dateStart string) (bool, error)
	CommitEvent(ctx context.Context, event *models.Event, races []models.Race) error
	ListEventsForOrganizer(ctx context.Context, organizerID, fromDate string) ([]models.Event, error)
	LinkPreviousEdition(ctx context.Context, eventID, previousID string) error
}

// Archiver stores diagnostics; nil disables archiving.
type Archiver interface {
	StoreRawExtraction(ctx context.Context, sourceURL, raw string, extractErr error) (string, error)
	StoreDryRunReport(ctx context.Context, report interface{}) (string, error)
}

// IngestResult is the classified outcome of ingesting one URL group.
type IngestResult struct {
	Outcome   string   `json:"outcome"`
	LastState string   `json:"last_state"`
	Reason    string   `json:"reason,omitempty"`
	URLs      []string `json:"urls"`
	DryRun    bool     `json:"dry_run"`

	EventID     string `json:"event_id,omitempty"`
	PlaceID     string `json:"place_id,omitempty"`
	OrganizerID string `json:"organizer_id,omitempty"`

	Event *models.Event `json:"event,omitempty"`
	Races []models.Race `json:"races,omitempty"`
}

// BatchSummary aggregates outcome counts over one batch.
type BatchSummary struct {
	Committed   int `json:"committed"`
	Duplicates  int `json:"duplicates"`
	Failed      int `json:"failed"`
	SkippedPast int `json:"skipped_past"`
}

// IngestionPipeline drives fetch, extraction, entity resolution,
// duplicate checking and the commit for one candidate event at a time.
// Processing is strictly sequential; external calls are synchronous and
// a failed call fails the current candidate without in-process retries.
type IngestionPipeline struct {
	fetcher   PageFetcher
	extractor EventExtractor
	geocoder  Geocoder
	store     EventStore
	proximity *ProximityResolver
	matcher   *OrganizerMatcher
	archive   Archiver

	dryRun bool
	source string
	now    func() time.Time
}

// PipelineConfig bundles the pipeline's collaborators and knobs.
type PipelineConfig struct {
	Fetcher   PageFetcher
	Extractor EventExtractor
	Geocoder  Geocoder
	Store     EventStore
	Archive   Archiver // optional

	ProximityThresholdKm float64 // 0 = default
	FuzzyCutoff          int     // 0 = default
	DryRun               bool
	Source               string // provenance string stamped on events
	Now                  func() time.Time
}

// NewIngestionPipeline creates a pipeline from its collaborators.
func NewIngestionPipeline(cfg PipelineConfig) *IngestionPipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	source := cfg.Source
	if source == "" {
		source = "crawler"
	}
	return &IngestionPipeline{
		fetcher:   cfg.Fetcher,
		extractor: cfg.Extractor,
		geocoder:  cfg.Geocoder,
		store:     cfg.Store,
		proximity: NewProximityResolver(cfg.Store, cfg.ProximityThresholdKm),
		matcher:   NewOrganizerMatcher(cfg.FuzzyCutoff),
		archive:   cfg.Archive,
		dryRun:    cfg.DryRun,
		source:    source,
		now:       now,
	}
}

// Ingest processes one URL group describing a single event. The returned
// result is always non-nil and carries the outcome classification; the
// error is non-nil only for FAILED outcomes and wraps the taxonomy
// sentinel that caused the failure.
func (p *IngestionPipeline) Ingest(ctx context.Context, urlGroup []string) (*IngestResult, error) {
	result := &IngestResult{URLs: urlGroup, DryRun: p.dryRun}
	today := models.FormatISODate(p.now())

	// FETCHING
	result.LastState = StateFetching
	var pages []PageContent
	for _, url := range urlGroup {
		content, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			log.Printf("Failed to fetch %s: %v", url, err)
			continue
		}
		pages = append(pages, PageContent{URL: url, Content: content})
	}
	if len(pages) == 0 {
		return p.fail(result, fmt.Errorf("%w: no content from any of %d URLs", ErrTransientFetch, len(urlGroup)))
	}

	// EXTRACTING
	result.LastState = StateExtracting
	extracted, raw, err := p.extractor.ExtractEvent(ctx, pages, today)
	if err != nil {
		p.archiveRaw(ctx, urlGroup[0], raw, err)
		return p.fail(result, err)
	}

	// VALIDATING
	result.LastState = StateValidating
	startDate, err := models.ParseISODate(extracted.Event.DateStart)
	if err != nil {
		return p.fail(result, fmt.Errorf("%w: %v", ErrExtraction, err))
	}
	todayDate, _ := models.ParseISODate(today)
	if !startDate.After(todayDate) {
		// Past events are a silent skip, not an error.
		log.Printf("Skipping past event %q with start date %s", extracted.Event.Name, extracted.Event.DateStart)
		result.Outcome = OutcomeSkippedPast
		return result, nil
	}

	// RESOLVING_PLACE
	result.LastState = StateResolvingPlace
	place, err := p.resolvePlace(ctx, &extracted.Event.Location)
	if err != nil {
		return p.fail(result, err)
	}
	result.PlaceID = place.ID

	// RESOLVING_ORGANIZER
	result.LastState = StateResolvingOrganizer
	organizer, err := p.resolveOrganizer(ctx, extracted)
	if err != nil {
		return p.fail(result, err)
	}
	if organizer != nil {
		result.OrganizerID = organizer.ID
	}

	// CHECKING_DUPLICATE
	result.LastState = StateCheckingDuplicate
	exists, err := p.store.EventExistsAt(ctx, place.ID, extracted.Event.DateStart)
	if err != nil {
		return p.fail(result, fmt.Errorf("%w: duplicate check: %v", ErrPersistence, err))
	}
	if exists {
		log.Printf("Skipping event %q: an event already exists at %s, %s on %s",
			extracted.Event.Name, place.City, place.Country, extracted.Event.DateStart)
		result.Outcome = OutcomeSkippedDuplicate
		return result, nil
	}

	// COMMITTING
	result.LastState = StateCommitting
	event, races := p.buildEvent(extracted, place, organizer, urlGroup)
	result.Event = event
	result.Races = races
	result.EventID = event.ID

	if p.dryRun {
		log.Printf("[DRY RUN] Would commit event %q (%s) with %d races at place %s",
			event.Name, event.DateStart, len(races), place.ID)
		p.archiveDryRun(ctx, result)
		result.Outcome = OutcomeCommitted
		return result, nil
	}

	if err := p.store.CommitEvent(ctx, event, races); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// A concurrent worker won the race; the guard converted the
			// second write into a rejection.
			result.Outcome = OutcomeSkippedDuplicate
			result.Reason = err.Error()
			return result, nil
		}
		return p.fail(result, err)
	}
	log.Printf("Committed event %q (%s) with %d races", event.Name, event.ID, len(races))

	p.linkPreviousEdition(ctx, event)

	result.Outcome = OutcomeCommitted
	return result, nil
}

// IngestBatch processes URL groups sequentially. One failing candidate
// never aborts the batch; limit > 0 caps the number of groups processed.
func (p *IngestionPipeline) IngestBatch(ctx context.Context, groups [][]string, limit int) (BatchSummary, []IngestResult) {
	if limit > 0 && len(groups) > limit {
		log.Printf("Limiting batch to %d of %d URL groups", limit, len(groups))
		groups = groups[:limit]
	}

	var summary BatchSummary
	results := make([]IngestResult, 0, len(groups))
	for i, group := range groups {
		log.Printf("Processing event %d/%d: %s", i+1, len(groups), strings.Join(group, ", "))

		result, err := p.Ingest(ctx, group)
		if err != nil {
			log.Printf("Candidate failed in state %s: %v", result.LastState, err)
		}

		switch result.Outcome {
		case OutcomeCommitted:
			summary.Committed++
		case OutcomeSkippedDuplicate:
			summary.Duplicates++
		case OutcomeSkippedPast:
			summary.SkippedPast++
		default:
			summary.Failed++
		}
		results = append(results, *result)
	}
	return summary, results
}

// resolvePlace geocodes the candidate location and resolves it against
// existing places: an exact field match or a place within the proximity
// threshold (with a compatible water type) is reused; otherwise a new
// place is created, unverified and without coordinates when geocoding
// has no answer. In dry-run mode the candidate place is built but never
// written; its deterministic ID keeps the run's decisions identical to a
// real run.
func (p *IngestionPipeline) resolvePlace(ctx context.Context, loc *models.ExtractedLocation) (*models.Place, error) {
	if strings.TrimSpace(loc.City) == "" || strings.TrimSpace(loc.Country) == "" {
		return nil, fmt.Errorf("%w: missing city or country", ErrIncompleteData)
	}
	countryCode := models.CountryCode(loc.Country)
	if countryCode == "" {
		return nil, fmt.Errorf("%w: unknown country %q", ErrIncompleteData, loc.Country)
	}

	// Exact match on the descriptive fields first.
	existing, err := p.store.ListPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing places: %v", ErrPersistence, err)
	}
	for i := range existing {
		candidate := &existing[i]
		if strings.EqualFold(candidate.City, loc.City) &&
			candidate.Country == countryCode &&
			strings.EqualFold(candidate.WaterName, loc.WaterName) &&
			candidate.WaterType == loc.WaterType {
			log.Printf("Using existing place %s: %s, %s", candidate.ID, candidate.City, candidate.Country)
			p.maybeUpdateAddress(ctx, candidate, loc.Address)
			return candidate, nil
		}
	}

	place := &models.Place{
		ID:        models.GeneratePlaceID(loc.City, countryCode, loc.WaterName),
		City:      loc.City,
		Country:   countryCode,
		WaterName: loc.WaterName,
		WaterType: loc.WaterType,
		Address:   loc.Address,
	}

	query := fmt.Sprintf("%s, %s", loc.City, models.CountryName(countryCode))
	if loc.Address != "" {
		query = fmt.Sprintf("%s, %s", loc.Address, models.CountryName(countryCode))
	}
	geocoded, err := p.geocoder.Geocode(ctx, query)
	if err != nil {
		log.Printf("Geocoding error for %q: %v", query, err)
	}

	if geocoded != nil {
		place.Lat = &geocoded.Lat
		place.Lng = &geocoded.Lng
		if place.Address == "" {
			place.Address = geocoded.Address
		}

		nearby, err := p.proximity.FindWithinThreshold(ctx, geocoded.Lat, geocoded.Lng)
		if err != nil {
			return nil, fmt.Errorf("%w: proximity lookup: %v", ErrPersistence, err)
		}
		for i := range nearby {
			if waterTypesCompatible(nearby[i].Place.WaterType, loc.WaterType) {
				log.Printf("Found existing place %s %.2fkm away; using it instead of creating a new one",
					nearby[i].Place.ID, nearby[i].DistanceKm)
				return &nearby[i].Place, nil
			}
		}
	} else {
		log.Printf("Geocoding returned no result for %q; creating unverified place without coordinates", query)
	}

	if p.dryRun {
		log.Printf("[DRY RUN] Would create place %s: %s, %s", place.ID, place.City, place.Country)
		return place, nil
	}

	if err := p.store.CreatePlace(ctx, place); err != nil {
		return nil, err
	}
	log.Printf("Created place %s: %s, %s", place.ID, place.City, place.Country)

	p.attachHeaderPhoto(ctx, place)
	return place, nil
}

// waterTypesCompatible reports whether two water types can describe the
// same physical place. Unknown on either side is compatible with
// anything.
func waterTypesCompatible(a, b string) bool {
	return a == "" || b == "" || a == b
}

// maybeUpdateAddress refreshes a reused place's address when the
// extraction carries one the store does not.
func (p *IngestionPipeline) maybeUpdateAddress(ctx context.Context, place *models.Place, address string) {
	if address == "" || place.Address == address || p.dryRun {
		return
	}
	place.Address = address
	if err := p.store.UpdatePlace(ctx, place); err != nil {
		log.Printf("Failed to update address of place %s: %v", place.ID, err)
	}
}

// attachHeaderPhoto looks up a nearby point of interest photo for a
// freshly created, geocoded place. Failure is logged, never fatal.
func (p *IngestionPipeline) attachHeaderPhoto(ctx context.Context, place *models.Place) {
	if !place.HasCoordinates() {
		return
	}
	photo, err := p.geocoder.NearbyPlacePhoto(ctx, *place.Lat, *place.Lng, place.WaterType)
	if err != nil {
		log.Printf("Header photo lookup failed for place %s: %v", place.ID, err)
		return
	}
	if photo == "" {
		return
	}
	place.HeaderPhoto = photo
	if err := p.store.UpdatePlace(ctx, place); err != nil {
		log.Printf("Failed to store header photo for place %s: %v", place.ID, err)
	}
}

// resolveOrganizer fuzzy-matches the extracted organizer name against
// all known organizers; below the cutoff a new organizer is created. No
// extracted name means no resolution is attempted and the event will be
// committed without an organizer link.
func (p *IngestionPipeline) resolveOrganizer(ctx context.Context, extracted *models.ExtractedEvent) (*models.Organizer, error) {
	name := strings.TrimSpace(extracted.Event.Organizer.Name)
	if name == "" {
		log.Printf("No organizer name extracted")
		return nil, nil
	}

	known, err := p.store.ListOrganizers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing organizers: %v", ErrPersistence, err)
	}

	if match := p.matcher.Resolve(name, known); match != nil {
		log.Printf("Using existing organizer %s: %s", match.ID, match.Name)
		return match, nil
	}

	organizer := &models.Organizer{
		ID:      models.GenerateOrganizerID(name),
		Name:    name,
		Website: extracted.Event.Website,
	}
	if p.dryRun {
		log.Printf("[DRY RUN] Would create organizer %s: %s", organizer.ID, organizer.Name)
		return organizer, nil
	}
	if err := p.store.CreateOrganizer(ctx, organizer); err != nil {
		return nil, err
	}
	log.Printf("Created organizer %s: %s", organizer.ID, organizer.Name)
	return organizer, nil
}

// buildEvent maps the validated extraction onto persistable entities.
func (p *IngestionPipeline) buildEvent(extracted *models.ExtractedEvent, place *models.Place, organizer *models.Organizer, urlGroup []string) (*models.Event, []models.Race) {
	fields := extracted.Event

	website := fields.Website
	if website == "" {
		website = urlGroup[0]
	}
	dateEnd := fields.DateEnd
	if dateEnd == "" {
		dateEnd = fields.DateStart
	}

	event := &models.Event{
		ID:                      models.GenerateEventID(fields.Name, fields.DateStart, place.ID),
		Name:                    fields.Name,
		Website:                 website,
		PlaceID:                 place.ID,
		DateStart:               fields.DateStart,
		DateEnd:                 dateEnd,
		NeedsMedicalCertificate: fields.NeedsMedicalCertificate,
		NeedsLicense:            fields.NeedsLicense,
		SoldOut:                 fields.SoldOut,
		Cancelled:               fields.Cancelled,
		WithRanking:             fields.WithRanking,
		WaterTemp:               fields.WaterTemp,
		Description:             fields.Description,
		Source:                  p.source,
	}
	if organizer != nil {
		event.OrganizerID = organizer.ID
	}

	races := make([]models.Race, 0, len(extracted.Races))
	for _, raw := range extracted.Races {
		race := models.Race{
			ID:       models.GenerateRaceID(event.ID, raw.Date, raw.Distance, raw.Name),
			EventID:  event.ID,
			Date:     raw.Date,
			RaceTime: raw.RaceTime,
			Distance: raw.Distance,
			Name:     raw.Name,
			Wetsuit:  raw.Wetsuit,
		}
		if raw.Price != nil {
			price := *raw.Price
			if price.Currency == "" {
				price.Currency = "EUR"
			}
			race.Price = &price
		}
		races = append(races, race)
	}
	return event, races
}

// linkPreviousEdition looks for last year's edition of the same series
// (same organizer, same place, start date roughly one year earlier) and
// records the continuity link. Best effort: failures are logged only.
func (p *IngestionPipeline) linkPreviousEdition(ctx context.Context, event *models.Event) {
	if event.OrganizerID == "" {
		return
	}
	siblings, err := p.store.ListEventsForOrganizer(ctx, event.OrganizerID, "")
	if err != nil {
		log.Printf("Previous edition lookup failed for event %s: %v", event.ID, err)
		return
	}

	start, err := models.ParseISODate(event.DateStart)
	if err != nil {
		return
	}

	const tolerance = 31 * 24 * time.Hour
	for i := range siblings {
		sibling := &siblings[i]
		if sibling.ID == event.ID || sibling.PlaceID != event.PlaceID {
			continue
		}
		siblingStart, err := models.ParseISODate(sibling.DateStart)
		if err != nil {
			continue
		}
		gap := start.Sub(siblingStart) - 365*24*time.Hour
		if gap < -tolerance || gap > tolerance {
			continue
		}
		if err := p.store.LinkPreviousEdition(ctx, event.ID, sibling.ID); err != nil {
			log.Printf("Failed to link previous edition %s -> %s: %v", event.ID, sibling.ID, err)
		} else {
			log.Printf("Linked event %s to previous edition %s", event.ID, sibling.ID)
		}
		return
	}
}

// fail stamps the failure classification onto the result.
func (p *IngestionPipeline) fail(result *IngestResult, err error) (*IngestResult, error) {
	result.Outcome = OutcomeFailed
	result.Reason = err.Error()
	return result, err
}

func (p *IngestionPipeline) archiveRaw(ctx context.Context, sourceURL, raw string, extractErr error) {
	if p.archive == nil || raw == "" {
		return
	}
	key, err := p.archive.StoreRawExtraction(ctx, sourceURL, raw, extractErr)
	if err != nil {
		log.Printf("Failed to archive raw extraction: %v", err)
		return
	}
	log.Printf("Archived raw extraction response at %s", key)
}

func (p *IngestionPipeline) archiveDryRun(ctx context.Context, result *IngestResult) {
	if p.archive == nil {
		return
	}
	if _, err := p.archive.StoreDryRunReport(ctx, result); err != nil {
		log.Printf("Failed to archive dry-run report: %v", err)
	}
}
