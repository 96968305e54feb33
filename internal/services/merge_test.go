package services

import (
	"context"
	"testing"
	"time"

	"openwater-events-scraper/internal/models"
)

type fakePlaceMergeStore struct {
	places  map[string]*models.Place
	events  map[string][]models.Event // place ID -> events
	deleted []string
}

func newFakePlaceMergeStore() *fakePlaceMergeStore {
	return &fakePlaceMergeStore{
		places: make(map[string]*models.Place),
		events: make(map[string][]models.Event),
	}
}

func (f *fakePlaceMergeStore) add(place models.Place, events ...models.Event) {
	copied := place
	f.places[place.ID] = &copied
	f.events[place.ID] = events
}

func (f *fakePlaceMergeStore) ListGeocodedPlaces(ctx context.Context) ([]models.Place, error) {
	var out []models.Place
	for _, p := range f.places {
		if p.HasCoordinates() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePlaceMergeStore) ListEventsAtPlace(ctx context.Context, placeID string) ([]models.Event, error) {
	return f.events[placeID], nil
}

func (f *fakePlaceMergeStore) RepointEvent(ctx context.Context, event *models.Event, newPlaceID string) error {
	old := event.PlaceID
	event.PlaceID = newPlaceID
	f.events[newPlaceID] = append(f.events[newPlaceID], *event)

	remaining := f.events[old][:0]
	for _, e := range f.events[old] {
		if e.ID != event.ID {
			remaining = append(remaining, e)
		}
	}
	f.events[old] = remaining
	return nil
}

func (f *fakePlaceMergeStore) DeletePlace(ctx context.Context, placeID string) error {
	delete(f.places, placeID)
	f.deleted = append(f.deleted, placeID)
	return nil
}

func TestPlaceMergerClustersOnlyNearbyPlaces(t *testing.T) {
	store := newFakePlaceMergeStore()
	store.add(geocodedPlace("plc_geneva_a", 46.2044, 6.1432),
		models.Event{ID: "evt_1", PlaceID: "plc_geneva_a", DateStart: "2026-07-12"})
	store.add(geocodedPlace("plc_geneva_b", 46.2049, 6.1440))
	store.add(geocodedPlace("plc_paris", 48.8566, 2.3522))

	merger := NewPlaceMerger(store, 0.5, false)
	results, err := merger.Merge(context.Background(), 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(results))
	}
	result := results[0]
	if result.KeptPlaceID == "plc_paris" {
		t.Error("Paris must not be part of the Geneva cluster")
	}
	if _, ok := store.places["plc_paris"]; !ok {
		t.Error("Paris place must survive the merge")
	}
	if len(store.places) != 2 {
		t.Errorf("Expected 2 places after the merge, got %d", len(store.places))
	}
}

func TestPlaceMergerKeeperPriority(t *testing.T) {
	now := time.Now()

	t.Run("verified wins", func(t *testing.T) {
		store := newFakePlaceMergeStore()
		verified := geocodedPlace("plc_verified", 46.2044, 6.1432)
		verified.VerifiedAt = &now
		store.add(verified)
		withPhoto := geocodedPlace("plc_photo", 46.2049, 6.1440)
		withPhoto.HeaderPhoto = "https://photos/x.jpg"
		store.add(withPhoto)

		merger := NewPlaceMerger(store, 0.5, false)
		results, err := merger.Merge(context.Background(), 0)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if len(results) != 1 || results[0].KeptPlaceID != "plc_verified" {
			t.Errorf("Expected the verified place to be kept, got %+v", results)
		}
	})

	t.Run("photo beats event count", func(t *testing.T) {
		store := newFakePlaceMergeStore()
		withPhoto := geocodedPlace("plc_photo", 46.2044, 6.1432)
		withPhoto.HeaderPhoto = "https://photos/x.jpg"
		store.add(withPhoto)
		store.add(geocodedPlace("plc_busy", 46.2049, 6.1440),
			models.Event{ID: "evt_1", PlaceID: "plc_busy", DateStart: "2026-07-12"},
			models.Event{ID: "evt_2", PlaceID: "plc_busy", DateStart: "2026-08-01"})

		merger := NewPlaceMerger(store, 0.5, false)
		results, err := merger.Merge(context.Background(), 0)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if len(results) != 1 || results[0].KeptPlaceID != "plc_photo" {
			t.Errorf("Expected the place with a photo to be kept, got %+v", results)
		}
		if results[0].RepointedEvents != 2 {
			t.Errorf("Expected 2 repointed events, got %d", results[0].RepointedEvents)
		}
		if len(store.events["plc_photo"]) != 2 {
			t.Errorf("Expected the keeper to hold the repointed events, got %d", len(store.events["plc_photo"]))
		}
	})

	t.Run("event count breaks remaining ties", func(t *testing.T) {
		store := newFakePlaceMergeStore()
		store.add(geocodedPlace("plc_quiet", 46.2044, 6.1432))
		store.add(geocodedPlace("plc_busy", 46.2049, 6.1440),
			models.Event{ID: "evt_1", PlaceID: "plc_busy", DateStart: "2026-07-12"})

		merger := NewPlaceMerger(store, 0.5, false)
		results, err := merger.Merge(context.Background(), 0)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if len(results) != 1 || results[0].KeptPlaceID != "plc_busy" {
			t.Errorf("Expected the busier place to be kept, got %+v", results)
		}
	})
}

func TestPlaceMergerDryRunDeletesNothing(t *testing.T) {
	store := newFakePlaceMergeStore()
	store.add(geocodedPlace("plc_a", 46.2044, 6.1432))
	store.add(geocodedPlace("plc_b", 46.2049, 6.1440),
		models.Event{ID: "evt_1", PlaceID: "plc_b", DateStart: "2026-07-12"})

	merger := NewPlaceMerger(store, 0.5, true)
	results, err := merger.Merge(context.Background(), 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected the dry run to report 1 cluster, got %d", len(results))
	}
	if len(store.deleted) != 0 {
		t.Errorf("Dry run deleted places: %v", store.deleted)
	}
	if len(store.places) != 2 {
		t.Errorf("Expected both places to survive the dry run, got %d", len(store.places))
	}
}

func TestPlaceMergerIsReentrant(t *testing.T) {
	store := newFakePlaceMergeStore()
	store.add(geocodedPlace("plc_a", 46.2044, 6.1432))
	store.add(geocodedPlace("plc_b", 46.2049, 6.1440))

	merger := NewPlaceMerger(store, 0.5, false)
	if _, err := merger.Merge(context.Background(), 0); err != nil {
		t.Fatalf("First merge failed: %v", err)
	}

	results, err := merger.Merge(context.Background(), 0)
	if err != nil {
		t.Fatalf("Second merge failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no clusters on a merged store, got %d", len(results))
	}
}

type fakeEventMergeStore struct {
	events  []models.Event
	races   map[string][]models.Race
	guards  map[string]string // "placeID|dateStart" -> event ID
	deleted []string
}

func eventGuardKey(event *models.Event) string {
	return event.PlaceID + "|" + event.DateStart
}

func (f *fakeEventMergeStore) ListFutureEvents(ctx context.Context, fromDate string) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.DateStart >= fromDate {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventMergeStore) ListRaces(ctx context.Context, eventID string) ([]models.Race, error) {
	return f.races[eventID], nil
}

func (f *fakeEventMergeStore) DeleteEventWithRaces(ctx context.Context, event *models.Event) error {
	f.deleted = append(f.deleted, event.ID)
	remaining := f.events[:0]
	for _, e := range f.events {
		if e.ID != event.ID {
			remaining = append(remaining, e)
		}
	}
	f.events = remaining
	delete(f.races, event.ID)
	// Same semantics as the storage layer: the shared guard goes away
	// only while it still points at the deleted event.
	if f.guards[eventGuardKey(event)] == event.ID {
		delete(f.guards, eventGuardKey(event))
	}
	return nil
}

func (f *fakeEventMergeStore) EnsureEventGuard(ctx context.Context, event *models.Event) error {
	if f.guards == nil {
		f.guards = make(map[string]string)
	}
	f.guards[eventGuardKey(event)] = event.ID
	return nil
}

func TestEventMergerKeepsMostRaces(t *testing.T) {
	store := &fakeEventMergeStore{
		events: []models.Event{
			{ID: "evt_sparse", PlaceID: "plc_1", DateStart: "2026-07-12"},
			{ID: "evt_rich", PlaceID: "plc_1", DateStart: "2026-07-12"},
			{ID: "evt_other", PlaceID: "plc_2", DateStart: "2026-07-12"},
		},
		races: map[string][]models.Race{
			"evt_sparse": {{ID: "race_1"}},
			"evt_rich":   {{ID: "race_2"}, {ID: "race_3"}},
		},
	}

	merger := NewEventMerger(store, nil, false)
	results, err := merger.Merge(context.Background(), "2026-01-01", 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 merged group, got %d", len(results))
	}
	if results[0].KeptEventID != "evt_rich" {
		t.Errorf("Expected the event with more races to be kept, got %s", results[0].KeptEventID)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "evt_sparse" {
		t.Errorf("Expected evt_sparse to be deleted, got %v", store.deleted)
	}
	for _, e := range store.events {
		if e.ID == "evt_other" {
			return
		}
	}
	t.Error("Event at a different place must survive the merge")
}

func TestEventMergerOperatorOverride(t *testing.T) {
	store := &fakeEventMergeStore{
		events: []models.Event{
			{ID: "evt_a", PlaceID: "plc_1", DateStart: "2026-07-12"},
			{ID: "evt_b", PlaceID: "plc_1", DateStart: "2026-07-12"},
		},
		races: map[string][]models.Race{
			"evt_a": {{ID: "race_1"}, {ID: "race_2"}},
		},
	}

	// Override the recommendation and keep the sparse event instead.
	confirm := func(recommended models.Event, group []models.Event) string {
		if recommended.ID != "evt_a" {
			t.Errorf("Expected evt_a to be recommended, got %s", recommended.ID)
		}
		return "evt_b"
	}

	merger := NewEventMerger(store, confirm, false)
	results, err := merger.Merge(context.Background(), "2026-01-01", 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(results) != 1 || results[0].KeptEventID != "evt_b" {
		t.Errorf("Expected the operator's choice to win, got %+v", results)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "evt_a" {
		t.Errorf("Expected evt_a to be deleted, got %v", store.deleted)
	}
}

func TestEventMergerKeepsGuardOnKeptEvent(t *testing.T) {
	newStore := func(guardedID string) *fakeEventMergeStore {
		return &fakeEventMergeStore{
			events: []models.Event{
				{ID: "evt_a", PlaceID: "plc_1", DateStart: "2026-07-12"},
				{ID: "evt_b", PlaceID: "plc_1", DateStart: "2026-07-12"},
			},
			races: map[string][]models.Race{
				"evt_a": {{ID: "race_1"}, {ID: "race_2"}},
			},
			guards: map[string]string{"plc_1|2026-07-12": guardedID},
		}
	}

	t.Run("guard already on the keeper", func(t *testing.T) {
		store := newStore("evt_a")
		merger := NewEventMerger(store, nil, false)
		if _, err := merger.Merge(context.Background(), "2026-01-01", 0); err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if got := store.guards["plc_1|2026-07-12"]; got != "evt_a" {
			t.Errorf("Expected the guard to point at evt_a after the merge, got %q", got)
		}
	})

	t.Run("guard on a deleted duplicate", func(t *testing.T) {
		store := newStore("evt_a")
		confirm := func(recommended models.Event, group []models.Event) string { return "evt_b" }
		merger := NewEventMerger(store, confirm, false)
		if _, err := merger.Merge(context.Background(), "2026-01-01", 0); err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if got := store.guards["plc_1|2026-07-12"]; got != "evt_b" {
			t.Errorf("Expected the guard to follow the kept event evt_b, got %q", got)
		}
	})
}

func TestEventMergerSkipsUnknownKeeperChoice(t *testing.T) {
	store := &fakeEventMergeStore{
		events: []models.Event{
			{ID: "evt_a", PlaceID: "plc_1", DateStart: "2026-07-12"},
			{ID: "evt_b", PlaceID: "plc_1", DateStart: "2026-07-12"},
		},
		races: map[string][]models.Race{},
	}

	confirm := func(recommended models.Event, group []models.Event) string { return "evt_typo" }
	merger := NewEventMerger(store, confirm, false)

	results, err := merger.Merge(context.Background(), "2026-01-01", 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected an unknown keeper ID to skip the group, got %+v", results)
	}
	if len(store.deleted) != 0 {
		t.Errorf("Unknown keeper ID must not delete anything, got %v", store.deleted)
	}
}

func TestEventMergerSkipOnEmptyConfirmation(t *testing.T) {
	store := &fakeEventMergeStore{
		events: []models.Event{
			{ID: "evt_a", PlaceID: "plc_1", DateStart: "2026-07-12"},
			{ID: "evt_b", PlaceID: "plc_1", DateStart: "2026-07-12"},
		},
		races: map[string][]models.Race{},
	}

	confirm := func(recommended models.Event, group []models.Event) string { return "" }
	merger := NewEventMerger(store, confirm, false)

	results, err := merger.Merge(context.Background(), "2026-01-01", 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected a skipped group to produce no result, got %+v", results)
	}
	if len(store.deleted) != 0 {
		t.Errorf("Skipped group must not delete anything, got %v", store.deleted)
	}
}

func TestEventMergerDryRun(t *testing.T) {
	store := &fakeEventMergeStore{
		events: []models.Event{
			{ID: "evt_a", PlaceID: "plc_1", DateStart: "2026-07-12"},
			{ID: "evt_b", PlaceID: "plc_1", DateStart: "2026-07-12"},
		},
		races: map[string][]models.Race{},
	}

	merger := NewEventMerger(store, nil, true)
	results, err := merger.Merge(context.Background(), "2026-01-01", 0)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(results) != 1 || len(results[0].DeletedEventIDs) != 1 {
		t.Fatalf("Expected the dry run to report 1 planned deletion, got %+v", results)
	}
	if len(store.deleted) != 0 {
		t.Errorf("Dry run deleted events: %v", store.deleted)
	}
}
