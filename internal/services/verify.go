package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"openwater-events-scraper/internal/models"
)

// PlaceVerifyStore is the persistence surface the verification job needs.
type PlaceVerifyStore interface {
	ListPlaces(ctx context.Context) ([]models.Place, error)
	UpdatePlace(ctx context.Context, place *models.Place) error
}

// VerifySummary aggregates what one verification run changed.
type VerifySummary struct {
	Examined    int `json:"examined"`
	Geocoded    int `json:"geocoded"`
	PhotosSet   int `json:"photos_set"`
	Verified    int `json:"verified"`
	StillBroken int `json:"still_broken"`
}

// PlaceVerifier backfills unverified places: geocodes the ones missing
// coordinates, attaches header photos and optionally stamps them
// verified once complete.
type PlaceVerifier struct {
	store      PlaceVerifyStore
	geocoder   Geocoder
	autoVerify bool
	dryRun     bool
	now        func() time.Time
}

// NewPlaceVerifier creates a verifier.
func NewPlaceVerifier(store PlaceVerifyStore, geocoder Geocoder, autoVerify, dryRun bool) *PlaceVerifier {
	return &PlaceVerifier{
		store:      store,
		geocoder:   geocoder,
		autoVerify: autoVerify,
		dryRun:     dryRun,
		now:        time.Now,
	}
}

// Run examines unverified places. limit > 0 caps how many are processed.
func (v *PlaceVerifier) Run(ctx context.Context, limit int) (VerifySummary, error) {
	var summary VerifySummary

	places, err := v.store.ListPlaces(ctx)
	if err != nil {
		return summary, fmt.Errorf("%w: listing places: %v", ErrPersistence, err)
	}

	for i := range places {
		place := &places[i]
		if place.IsVerified() {
			continue
		}
		if limit > 0 && summary.Examined >= limit {
			break
		}
		summary.Examined++

		changed := false

		if !place.HasCoordinates() {
			query := fmt.Sprintf("%s, %s", place.City, models.CountryName(place.Country))
			if place.Address != "" {
				query = fmt.Sprintf("%s, %s", place.Address, models.CountryName(place.Country))
			}
			geocoded, err := v.geocoder.Geocode(ctx, query)
			if err != nil {
				log.Printf("Geocoding error for place %s (%q): %v", place.ID, query, err)
			}
			if geocoded != nil {
				place.Lat = &geocoded.Lat
				place.Lng = &geocoded.Lng
				if place.Address == "" {
					place.Address = geocoded.Address
				}
				changed = true
				summary.Geocoded++
				log.Printf("Geocoded place %s: %.5f, %.5f", place.ID, geocoded.Lat, geocoded.Lng)
			}
		}

		if place.HasCoordinates() && place.HeaderPhoto == "" {
			photo, err := v.geocoder.NearbyPlacePhoto(ctx, *place.Lat, *place.Lng, place.WaterType)
			if err != nil {
				log.Printf("Header photo lookup failed for place %s: %v", place.ID, err)
			} else if photo != "" {
				place.HeaderPhoto = photo
				changed = true
				summary.PhotosSet++
			}
		}

		if v.autoVerify && place.HasCoordinates() {
			now := v.now()
			place.VerifiedAt = &now
			changed = true
			summary.Verified++
		}

		if !place.HasCoordinates() {
			summary.StillBroken++
		}

		if !changed {
			continue
		}
		if v.dryRun {
			log.Printf("[DRY RUN] Would update place %s (%s, %s)", place.ID, place.City, place.Country)
			continue
		}
		if err := v.store.UpdatePlace(ctx, place); err != nil {
			return summary, err
		}
	}

	log.Printf("Verification run: examined=%d geocoded=%d photos=%d verified=%d still_broken=%d",
		summary.Examined, summary.Geocoded, summary.PhotosSet, summary.Verified, summary.StillBroken)
	return summary, nil
}
