package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"openwater-events-scraper/internal/models"
)

// DefaultMergeThresholdKm is the distance under which two geocoded
// places are treated as the same physical location. Tighter than the
// ingestion threshold because merging is destructive.
const DefaultMergeThresholdKm = 0.5

// PlaceMergeStore is the persistence surface the place merge tool needs.
type PlaceMergeStore interface {
	PlaceReader
	ListEventsAtPlace(ctx context.Context, placeID string) ([]models.Event, error)
	RepointEvent(ctx context.Context, event *models.Event, newPlaceID string) error
	DeletePlace(ctx context.Context, placeID string) error
}

// PlaceMergeResult describes one executed (or planned) cluster merge.
type PlaceMergeResult struct {
	KeptPlaceID     string   `json:"kept_place_id"`
	MergedPlaceIDs  []string `json:"merged_place_ids"`
	RepointedEvents int      `json:"repointed_events"`
}

// PlaceMerger collapses clusters of geocoded places that sit within the
// merge threshold of each other. Safe to run repeatedly: a fully merged
// store yields no clusters.
type PlaceMerger struct {
	store       PlaceMergeStore
	thresholdKm float64
	dryRun      bool
}

// NewPlaceMerger creates a merger; thresholdKm <= 0 selects the default.
func NewPlaceMerger(store PlaceMergeStore, thresholdKm float64, dryRun bool) *PlaceMerger {
	if thresholdKm <= 0 {
		thresholdKm = DefaultMergeThresholdKm
	}
	return &PlaceMerger{store: store, thresholdKm: thresholdKm, dryRun: dryRun}
}

// Merge finds all clusters, picks a keeper per cluster, repoints the
// merged places' events to the keeper and deletes the merged places.
// limit > 0 caps the number of clusters processed in this run.
func (m *PlaceMerger) Merge(ctx context.Context, limit int) ([]PlaceMergeResult, error) {
	places, err := m.store.ListGeocodedPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing places: %v", ErrPersistence, err)
	}

	clusters := m.buildClusters(places)
	log.Printf("Found %d mergeable place clusters among %d geocoded places", len(clusters), len(places))
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}

	var results []PlaceMergeResult
	for _, cluster := range clusters {
		result, err := m.mergeCluster(ctx, cluster)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// buildClusters groups places transitively: two places belong to the
// same cluster when any chain of pairwise distances at or below the
// threshold connects them. Single-member clusters are dropped.
func (m *PlaceMerger) buildClusters(places []models.Place) [][]models.Place {
	parent := make([]int, len(places))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		parent[find(a)] = find(b)
	}

	for i := 0; i < len(places); i++ {
		for j := i + 1; j < len(places); j++ {
			d := HaversineKm(*places[i].Lat, *places[i].Lng, *places[j].Lat, *places[j].Lng)
			if d <= m.thresholdKm {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]models.Place)
	for i := range places {
		root := find(i)
		groups[root] = append(groups[root], places[i])
	}

	var clusters [][]models.Place
	for _, group := range groups {
		if len(group) > 1 {
			clusters = append(clusters, group)
		}
	}
	// Deterministic order for logs and dry-run reports.
	sort.Slice(clusters, func(a, b int) bool {
		return clusters[a][0].ID < clusters[b][0].ID
	})
	return clusters
}

// mergeCluster picks the keeper and folds the rest of the cluster into
// it. Keeper priority: verified beats unverified, then having a header
// photo, then hosting more events, then the lexically smallest ID so
// repeated runs pick the same keeper.
func (m *PlaceMerger) mergeCluster(ctx context.Context, cluster []models.Place) (*PlaceMergeResult, error) {
	eventsByPlace := make(map[string][]models.Event, len(cluster))
	for _, place := range cluster {
		events, err := m.store.ListEventsAtPlace(ctx, place.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: listing events at place %s: %v", ErrPersistence, place.ID, err)
		}
		eventsByPlace[place.ID] = events
	}

	sort.Slice(cluster, func(a, b int) bool {
		pa, pb := cluster[a], cluster[b]
		if pa.IsVerified() != pb.IsVerified() {
			return pa.IsVerified()
		}
		if (pa.HeaderPhoto != "") != (pb.HeaderPhoto != "") {
			return pa.HeaderPhoto != ""
		}
		if na, nb := len(eventsByPlace[pa.ID]), len(eventsByPlace[pb.ID]); na != nb {
			return na > nb
		}
		return pa.ID < pb.ID
	})

	keeper := cluster[0]
	result := &PlaceMergeResult{KeptPlaceID: keeper.ID}

	for _, loser := range cluster[1:] {
		events := eventsByPlace[loser.ID]
		log.Printf("Merging place %s (%s, %s) into %s (%s, %s), repointing %d events",
			loser.ID, loser.City, loser.Country, keeper.ID, keeper.City, keeper.Country, len(events))

		if m.dryRun {
			log.Printf("[DRY RUN] Would repoint %d events and delete place %s", len(events), loser.ID)
			result.MergedPlaceIDs = append(result.MergedPlaceIDs, loser.ID)
			result.RepointedEvents += len(events)
			continue
		}

		for i := range events {
			if err := m.store.RepointEvent(ctx, &events[i], keeper.ID); err != nil {
				return result, err
			}
			result.RepointedEvents++
		}
		if err := m.store.DeletePlace(ctx, loser.ID); err != nil {
			return result, err
		}
		result.MergedPlaceIDs = append(result.MergedPlaceIDs, loser.ID)
	}
	return result, nil
}

// EventMergeStore is the persistence surface the event merge tool needs.
type EventMergeStore interface {
	ListFutureEvents(ctx context.Context, fromDate string) ([]models.Event, error)
	ListRaces(ctx context.Context, eventID string) ([]models.Race, error)
	DeleteEventWithRaces(ctx context.Context, event *models.Event) error
	EnsureEventGuard(ctx context.Context, event *models.Event) error
}

// ConfirmFunc asks the operator whether the recommended keeper should be
// kept. It receives the recommendation and the full group and returns
// the ID of the event to keep, or empty to skip the group.
type ConfirmFunc func(recommended models.Event, group []models.Event) string

// EventMergeResult describes one executed (or planned) group merge.
type EventMergeResult struct {
	KeptEventID     string   `json:"kept_event_id"`
	DeletedEventIDs []string `json:"deleted_event_ids"`
}

// EventMerger finds groups of future events sharing a place and start
// date, keeps one per group and deletes the rest with their races. Such
// groups appear when a place merge repoints events that then collide on
// the same date.
type EventMerger struct {
	store   EventMergeStore
	confirm ConfirmFunc
	dryRun  bool
}

// NewEventMerger creates a merger. A nil confirm always accepts the
// recommendation.
func NewEventMerger(store EventMergeStore, confirm ConfirmFunc, dryRun bool) *EventMerger {
	return &EventMerger{store: store, confirm: confirm, dryRun: dryRun}
}

// Merge scans future events from the given date. limit > 0 caps the
// number of groups processed in this run.
func (m *EventMerger) Merge(ctx context.Context, fromDate string, limit int) ([]EventMergeResult, error) {
	events, err := m.store.ListFutureEvents(ctx, fromDate)
	if err != nil {
		return nil, fmt.Errorf("%w: listing future events: %v", ErrPersistence, err)
	}

	groups := groupByPlaceAndDate(events)
	log.Printf("Found %d duplicate event groups among %d future events", len(groups), len(events))
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	var results []EventMergeResult
	for _, group := range groups {
		result, err := m.mergeGroup(ctx, group)
		if err != nil {
			return results, err
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

func groupByPlaceAndDate(events []models.Event) [][]models.Event {
	byKey := make(map[string][]models.Event)
	for _, event := range events {
		key := event.PlaceID + "|" + event.DateStart
		byKey[key] = append(byKey[key], event)
	}

	var keys []string
	for key, group := range byKey {
		if len(group) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	groups := make([][]models.Event, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.Slice(group, func(a, b int) bool { return group[a].ID < group[b].ID })
		groups = append(groups, group)
	}
	return groups
}

// mergeGroup recommends keeping the event with the most races, lets the
// operator override and deletes the rest. Returns nil when the operator
// skips the group.
func (m *EventMerger) mergeGroup(ctx context.Context, group []models.Event) (*EventMergeResult, error) {
	raceCounts := make(map[string]int, len(group))
	for _, event := range group {
		races, err := m.store.ListRaces(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: listing races of event %s: %v", ErrPersistence, event.ID, err)
		}
		raceCounts[event.ID] = len(races)
	}

	recommended := group[0]
	for _, event := range group[1:] {
		if raceCounts[event.ID] > raceCounts[recommended.ID] {
			recommended = event
		}
	}
	log.Printf("Duplicate group at place %s on %s: %d events, recommending %q (%d races)",
		recommended.PlaceID, recommended.DateStart, len(group), recommended.Name, raceCounts[recommended.ID])

	keepID := recommended.ID
	if m.confirm != nil {
		keepID = m.confirm(recommended, group)
		if keepID == "" {
			log.Printf("Skipping group at place %s on %s", recommended.PlaceID, recommended.DateStart)
			return nil, nil
		}
	}
	var kept *models.Event
	for i := range group {
		if group[i].ID == keepID {
			kept = &group[i]
		}
	}
	if kept == nil {
		log.Printf("Skipping group at place %s on %s: %s is not in the group", recommended.PlaceID, recommended.DateStart, keepID)
		return nil, nil
	}

	result := &EventMergeResult{KeptEventID: keepID}
	for i := range group {
		event := &group[i]
		if event.ID == keepID {
			continue
		}
		if m.dryRun {
			log.Printf("[DRY RUN] Would delete event %s (%q) with %d races", event.ID, event.Name, raceCounts[event.ID])
			result.DeletedEventIDs = append(result.DeletedEventIDs, event.ID)
			continue
		}
		if err := m.store.DeleteEventWithRaces(ctx, event); err != nil {
			return result, err
		}
		log.Printf("Deleted event %s (%q)", event.ID, event.Name)
		result.DeletedEventIDs = append(result.DeletedEventIDs, event.ID)
	}

	// The deleted duplicates shared the kept event's uniqueness guard.
	// Rewrite it so the next crawl of this place and date still sees the
	// kept event as committed.
	if !m.dryRun {
		if err := m.store.EnsureEventGuard(ctx, kept); err != nil {
			return result, err
		}
	}
	return result, nil
}
