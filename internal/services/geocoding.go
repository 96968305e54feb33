package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"openwater-events-scraper/internal/models"
)

// GoogleMapsClient is a plain HTTP adapter for the Google Maps Geocoding
// and Places APIs. Only the operations the pipeline needs are covered:
// forward geocoding and looking up a nearby point of interest with a
// photo reference.
type GoogleMapsClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// GeocodeResult holds the fields the resolver consumes from a geocoding
// response.
type GeocodeResult struct {
	Lat     float64
	Lng     float64
	Address string
	City    string
	Country string // ISO alpha-2
}

// NewGoogleMapsClient creates a Google Maps client. A missing API key is
// a fatal configuration error.
func NewGoogleMapsClient() *GoogleMapsClient {
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		log.Fatal("GOOGLE_MAPS_API_KEY environment variable is required")
	}
	return &GoogleMapsClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    "https://maps.googleapis.com",
	}
}

// NewGoogleMapsClientWithBaseURL creates a client against a custom
// endpoint, used by tests.
func NewGoogleMapsClientWithBaseURL(apiKey, baseURL string) *GoogleMapsClient {
	return &GoogleMapsClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// geocodeResponse mirrors the wire format of the Geocoding API.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode forward-geocodes a free-text query. Returns (nil, nil) when the
// provider has no result; that is an expected outcome, not an error.
func (g *GoogleMapsClient) Geocode(ctx context.Context, query string) (*GeocodeResult, error) {
	if query == "" {
		return nil, fmt.Errorf("geocode query cannot be empty")
	}

	endpoint := fmt.Sprintf("%s/maps/api/geocode/json?%s", g.baseURL, url.Values{
		"address": {query},
		"key":     {g.apiKey},
	}.Encode())

	var decoded geocodeResponse
	if err := g.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}

	switch decoded.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("geocoding returned status %s: %s", decoded.Status, decoded.ErrorMessage)
	}
	if len(decoded.Results) == 0 {
		return nil, nil
	}

	first := decoded.Results[0]
	result := &GeocodeResult{
		Lat: first.Geometry.Location.Lat,
		Lng: first.Geometry.Location.Lng,
	}

	var route, streetNumber, locality, postalTown string
	for _, component := range first.AddressComponents {
		for _, typ := range component.Types {
			switch typ {
			case "route":
				route = component.LongName
			case "street_number":
				streetNumber = component.LongName
			case "locality":
				locality = component.LongName
			case "postal_town":
				postalTown = component.LongName
			case "country":
				result.Country = component.ShortName
			}
		}
	}

	result.City = locality
	if result.City == "" {
		result.City = postalTown
	}
	result.Address = route
	if streetNumber != "" && result.Address != "" {
		result.Address += " " + streetNumber
	}
	if result.Address == "" {
		result.Address = first.FormattedAddress
	}

	return result, nil
}

// placesNearbyResponse mirrors the wire format of the Places Nearby
// Search API, reduced to the fields consumed here.
type placesNearbyResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name   string `json:"name"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"results"`
}

// NearbyPlacePhoto looks for a point of interest near the coordinates
// and returns a photo reference usable as a place header image. The
// water type hint narrows the place type searched. Returns "" when no
// suitable photo exists.
func (g *GoogleMapsClient) NearbyPlacePhoto(ctx context.Context, lat, lng float64, waterTypeHint string) (string, error) {
	for _, placeType := range placeTypesForWater(waterTypeHint) {
		endpoint := fmt.Sprintf("%s/maps/api/place/nearbysearch/json?%s", g.baseURL, url.Values{
			"location": {strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)},
			"radius":   {"2000"},
			"type":     {placeType},
			"key":      {g.apiKey},
		}.Encode())

		var decoded placesNearbyResponse
		if err := g.getJSON(ctx, endpoint, &decoded); err != nil {
			return "", fmt.Errorf("nearby search failed: %w", err)
		}
		if decoded.Status != "OK" {
			continue
		}

		for _, place := range decoded.Results {
			if len(place.Photos) > 0 {
				return place.Photos[0].PhotoReference, nil
			}
		}
	}

	return "", nil
}

// placeTypesForWater maps a water type to the Places API types worth
// searching, most specific first.
func placeTypesForWater(waterType string) []string {
	switch waterType {
	case models.WaterTypeSea:
		return []string{"beach", "natural_feature"}
	case models.WaterTypePool:
		return []string{"swimming_pool"}
	case models.WaterTypeLake, models.WaterTypeRiver:
		return []string{"natural_feature", "point_of_interest"}
	default:
		return []string{"natural_feature", "point_of_interest"}
	}
}

func (g *GoogleMapsClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
