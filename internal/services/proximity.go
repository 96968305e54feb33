package services

import (
	"context"
	"math"
	"sort"

	"openwater-events-scraper/internal/models"
)

// DefaultProximityThresholdKm is the radius under which two geocoded
// points are treated as the same place at ingestion time.
const DefaultProximityThresholdKm = 1.0

// earthRadiusKm is the spherical-earth approximation used by the
// haversine formula.
const earthRadiusKm = 6371.0

// PlaceReader is the read side of the store the resolver needs.
type PlaceReader interface {
	ListGeocodedPlaces(ctx context.Context) ([]models.Place, error)
}

// PlaceDistance pairs an existing place with its distance from a query
// point.
type PlaceDistance struct {
	Place      models.Place
	DistanceKm float64
}

// ProximityResolver finds existing places near a coordinate. The
// threshold is injected at construction so boundary values can be tested
// directly.
type ProximityResolver struct {
	places      PlaceReader
	thresholdKm float64
}

// NewProximityResolver creates a resolver with the given same-place
// threshold in kilometers.
func NewProximityResolver(places PlaceReader, thresholdKm float64) *ProximityResolver {
	if thresholdKm <= 0 {
		thresholdKm = DefaultProximityThresholdKm
	}
	return &ProximityResolver{places: places, thresholdKm: thresholdKm}
}

// ThresholdKm returns the configured same-place threshold.
func (r *ProximityResolver) ThresholdKm() float64 {
	return r.thresholdKm
}

// FindNearby returns all geocoded places within maxKm of the given
// coordinates, closest first. A coarse bounding-box filter runs before
// the exact haversine computation; the box is sized to always contain
// the full circle, so it can only ever admit extra candidates, never
// drop real ones.
func (r *ProximityResolver) FindNearby(ctx context.Context, lat, lng, maxKm float64) ([]PlaceDistance, error) {
	places, err := r.places.ListGeocodedPlaces(ctx)
	if err != nil {
		return nil, err
	}

	latDelta, lngDelta := boundingBoxDeltas(lat, maxKm)

	var nearby []PlaceDistance
	for _, place := range places {
		if !place.HasCoordinates() {
			continue
		}
		plat, plng := *place.Lat, *place.Lng

		if math.Abs(plat-lat) > latDelta {
			continue
		}
		if lngDelta > 0 && lngDeltaAbs(plng, lng) > lngDelta {
			continue
		}

		distance := HaversineKm(lat, lng, plat, plng)
		if distance <= maxKm {
			nearby = append(nearby, PlaceDistance{Place: place, DistanceKm: distance})
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}

// FindWithinThreshold is FindNearby at the configured same-place radius.
func (r *ProximityResolver) FindWithinThreshold(ctx context.Context, lat, lng float64) ([]PlaceDistance, error) {
	return r.FindNearby(ctx, lat, lng, r.thresholdKm)
}

// boundingBoxDeltas returns conservative degree deltas for a circle of
// radius maxKm around the given latitude. One degree of latitude is
// never less than ~110.57 km, so dividing by 110 oversizes the box.
// The longitude delta widens with latitude; near the poles the cosine
// collapses and the longitude filter is disabled entirely (delta 0
// means "do not filter").
func boundingBoxDeltas(lat, maxKm float64) (latDelta, lngDelta float64) {
	latDelta = maxKm / 110.0
	cosLat := math.Cos(deg2rad(lat))
	if cosLat > 0.01 {
		lngDelta = maxKm / (110.0 * cosLat)
	}
	return latDelta, lngDelta
}

// lngDeltaAbs returns the absolute longitude difference accounting for
// the antimeridian.
func lngDeltaAbs(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// HaversineKm computes the great-circle distance between two points in
// kilometers on a spherical earth.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLng := deg2rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
