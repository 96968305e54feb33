package services

import (
	"context"
	"testing"
	"time"

	"openwater-events-scraper/internal/models"
)

type fakeVerifyStore struct {
	places  map[string]*models.Place
	updates int
}

func (f *fakeVerifyStore) ListPlaces(ctx context.Context) ([]models.Place, error) {
	var out []models.Place
	for _, p := range f.places {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeVerifyStore) UpdatePlace(ctx context.Context, place *models.Place) error {
	copied := *place
	f.places[place.ID] = &copied
	f.updates++
	return nil
}

func TestVerifierBackfillsCoordinatesAndPhoto(t *testing.T) {
	store := &fakeVerifyStore{places: map[string]*models.Place{
		"plc_bare": {ID: "plc_bare", City: "Nice", Country: "FR", WaterType: models.WaterTypeSea},
	}}
	geocoder := &fakeGeocoder{
		result: &GeocodeResult{Lat: 43.6953, Lng: 7.2708, Address: "Promenade des Anglais"},
		photo:  "photo-ref-1",
	}

	verifier := NewPlaceVerifier(store, geocoder, false, false)
	summary, err := verifier.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Geocoded != 1 || summary.PhotosSet != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	place := store.places["plc_bare"]
	if !place.HasCoordinates() {
		t.Error("Expected coordinates to be backfilled")
	}
	if place.HeaderPhoto != "photo-ref-1" {
		t.Errorf("Expected photo to be backfilled, got %q", place.HeaderPhoto)
	}
	if place.IsVerified() {
		t.Error("Place must stay unverified without auto-verify")
	}
}

func TestVerifierAutoVerify(t *testing.T) {
	lat, lng := 43.6953, 7.2708
	store := &fakeVerifyStore{places: map[string]*models.Place{
		"plc_located": {ID: "plc_located", City: "Nice", Country: "FR", Lat: &lat, Lng: &lng, HeaderPhoto: "photo"},
	}}

	verifier := NewPlaceVerifier(store, &fakeGeocoder{}, true, false)
	summary, err := verifier.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Verified != 1 {
		t.Errorf("Expected 1 verified place, got %d", summary.Verified)
	}
	if !store.places["plc_located"].IsVerified() {
		t.Error("Expected the place to be stamped verified")
	}
}

func TestVerifierSkipsAlreadyVerified(t *testing.T) {
	now := time.Now()
	lat, lng := 43.6953, 7.2708
	store := &fakeVerifyStore{places: map[string]*models.Place{
		"plc_done": {ID: "plc_done", City: "Nice", Country: "FR", Lat: &lat, Lng: &lng, VerifiedAt: &now},
	}}

	verifier := NewPlaceVerifier(store, &fakeGeocoder{}, true, false)
	summary, err := verifier.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Examined != 0 || store.updates != 0 {
		t.Errorf("Verified place must be left alone: summary %+v, updates %d", summary, store.updates)
	}
}

func TestVerifierDryRun(t *testing.T) {
	store := &fakeVerifyStore{places: map[string]*models.Place{
		"plc_bare": {ID: "plc_bare", City: "Nice", Country: "FR"},
	}}
	geocoder := &fakeGeocoder{result: &GeocodeResult{Lat: 43.6953, Lng: 7.2708}}

	verifier := NewPlaceVerifier(store, geocoder, false, true)
	if _, err := verifier.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.updates != 0 {
		t.Errorf("Dry run wrote %d updates", store.updates)
	}
	if store.places["plc_bare"].HasCoordinates() {
		t.Error("Dry run must not persist coordinates")
	}
}

func TestVerifierCountsUnresolvablePlaces(t *testing.T) {
	store := &fakeVerifyStore{places: map[string]*models.Place{
		"plc_lost": {ID: "plc_lost", City: "Nowhere", Country: "FR"},
	}}

	verifier := NewPlaceVerifier(store, &fakeGeocoder{result: nil}, false, false)
	summary, err := verifier.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.StillBroken != 1 {
		t.Errorf("Expected 1 still-broken place, got %d", summary.StillBroken)
	}
}
