package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"openwater-events-scraper/internal/models"
)

// URLLister exposes the source URLs of already stored events, used to
// skip URL groups the crawler has seen before.
type URLLister interface {
	ListEventSourceURLs(ctx context.Context) ([]string, error)
}

// DiscoveryCrawler expands one calendar or listing page into URL groups,
// one group per not-yet-ingested event.
type DiscoveryCrawler struct {
	fetcher   PageFetcher
	extractor EventExtractor
	store     URLLister
	now       func() time.Time
}

// NewDiscoveryCrawler creates a crawler from its collaborators.
func NewDiscoveryCrawler(fetcher PageFetcher, extractor EventExtractor, store URLLister) *DiscoveryCrawler {
	return &DiscoveryCrawler{
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		now:       time.Now,
	}
}

// Discover fetches the start page, extracts candidate event URL groups
// and drops every group whose URLs match an already stored event. The
// known-URL snapshot is taken once at the start; events committed while
// the crawl runs are caught later by the duplicate check.
func (c *DiscoveryCrawler) Discover(ctx context.Context, startURL string) ([][]string, error) {
	content, err := c.fetcher.Fetch(ctx, startURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching start page %s: %v", ErrTransientFetch, startURL, err)
	}

	today := models.FormatISODate(c.now())
	groups, err := c.extractor.DiscoverEvents(ctx, content, startURL, today)
	if err != nil {
		return nil, err
	}
	log.Printf("Discovered %d candidate URL groups on %s", len(groups), startURL)

	knownURLs, err := c.store.ListEventSourceURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing known event URLs: %v", ErrPersistence, err)
	}

	fresh := FilterKnownURLGroups(groups, knownURLs)
	if skipped := len(groups) - len(fresh); skipped > 0 {
		log.Printf("Skipping %d already ingested URL groups", skipped)
	}
	return fresh, nil
}
