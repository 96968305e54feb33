package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/geocode/json" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("Expected API key in query, got %q", r.URL.Query().Get("key"))
		}
		fmt.Fprint(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 46.2044, "lng": 6.1432}},
				"formatted_address": "Quai du Mont-Blanc, 1201 Geneva, Switzerland",
				"address_components": [
					{"long_name": "Quai du Mont-Blanc", "short_name": "Quai du Mont-Blanc", "types": ["route"]},
					{"long_name": "30", "short_name": "30", "types": ["street_number"]},
					{"long_name": "Geneva", "short_name": "Geneva", "types": ["locality", "political"]},
					{"long_name": "Switzerland", "short_name": "CH", "types": ["country", "political"]}
				]
			}]
		}`)
	}))
	defer server.Close()

	client := NewGoogleMapsClientWithBaseURL("test-key", server.URL)
	result, err := client.Geocode(context.Background(), "Quai du Mont-Blanc, Geneva")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result")
	}
	if result.Lat != 46.2044 || result.Lng != 6.1432 {
		t.Errorf("Unexpected coordinates: %f, %f", result.Lat, result.Lng)
	}
	if result.City != "Geneva" {
		t.Errorf("Expected city Geneva, got %q", result.City)
	}
	if result.Country != "CH" {
		t.Errorf("Expected country CH, got %q", result.Country)
	}
	if result.Address != "Quai du Mont-Blanc 30" {
		t.Errorf("Unexpected address: %q", result.Address)
	}
}

func TestGeocodeZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer server.Close()

	client := NewGoogleMapsClientWithBaseURL("test-key", server.URL)
	result, err := client.Geocode(context.Background(), "nowhere at all")
	if err != nil {
		t.Fatalf("Expected no error on zero results, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result on zero results, got %+v", result)
	}
}

func TestGeocodeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "REQUEST_DENIED", "error_message": "key invalid", "results": []}`)
	}))
	defer server.Close()

	client := NewGoogleMapsClientWithBaseURL("bad-key", server.URL)
	if _, err := client.Geocode(context.Background(), "Geneva"); err == nil {
		t.Fatal("Expected an error for REQUEST_DENIED")
	}
}

func TestGeocodeEmptyQuery(t *testing.T) {
	client := NewGoogleMapsClientWithBaseURL("test-key", "http://unused")
	if _, err := client.Geocode(context.Background(), ""); err == nil {
		t.Fatal("Expected an error for an empty query")
	}
}

func TestNearbyPlacePhoto(t *testing.T) {
	var requestedTypes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		placeType := r.URL.Query().Get("type")
		requestedTypes = append(requestedTypes, placeType)
		if placeType == "beach" {
			fmt.Fprint(w, `{"status": "OK", "results": [{"name": "Plage des Eaux-Vives", "photos": [{"photo_reference": "photo-ref-123"}]}]}`)
			return
		}
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer server.Close()

	client := NewGoogleMapsClientWithBaseURL("test-key", server.URL)
	photo, err := client.NearbyPlacePhoto(context.Background(), 46.2044, 6.1432, "sea")
	if err != nil {
		t.Fatalf("NearbyPlacePhoto failed: %v", err)
	}
	if photo != "photo-ref-123" {
		t.Errorf("Expected photo-ref-123, got %q", photo)
	}
	if len(requestedTypes) == 0 || requestedTypes[0] != "beach" {
		t.Errorf("Expected beach to be searched first for sea water, got %v", requestedTypes)
	}
}

func TestNearbyPlacePhotoNoPhotos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "OK", "results": [{"name": "Unfotogenic Pond", "photos": []}]}`)
	}))
	defer server.Close()

	client := NewGoogleMapsClientWithBaseURL("test-key", server.URL)
	photo, err := client.NearbyPlacePhoto(context.Background(), 46.2044, 6.1432, "lake")
	if err != nil {
		t.Fatalf("NearbyPlacePhoto failed: %v", err)
	}
	if photo != "" {
		t.Errorf("Expected no photo, got %q", photo)
	}
}
