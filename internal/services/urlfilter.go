package services

import (
	"log"
	"strings"
)

// NormalizeURL normalizes a URL for duplicate comparison: the protocol,
// a trailing slash and a leading "www." are stripped and the rest is
// lower-cased.
func NormalizeURL(url string) string {
	if idx := strings.Index(url, "://"); idx >= 0 {
		url = url[idx+3:]
	}
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimPrefix(url, "www.")
	return strings.ToLower(url)
}

// urlsMatch reports whether two normalized URLs represent the same page.
// Containment in either direction counts as a match, so tracking
// parameters or path suffixes on one side do not hide a duplicate.
func urlsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// FilterKnownURLGroups drops every URL group that contains a URL already
// represented by a committed event. knownURLs is a read-only snapshot of
// the committed events' source URLs, fetched once per discovery run and
// passed in; the filter holds no state of its own.
func FilterKnownURLGroups(groups [][]string, knownURLs []string) [][]string {
	normalizedKnown := make([]string, 0, len(knownURLs))
	for _, url := range knownURLs {
		if url != "" {
			normalizedKnown = append(normalizedKnown, NormalizeURL(url))
		}
	}

	var fresh [][]string
	for _, group := range groups {
		known := false
	groupScan:
		for _, url := range group {
			normalized := NormalizeURL(url)
			for _, existing := range normalizedKnown {
				if urlsMatch(normalized, existing) {
					log.Printf("Skipping known event URL: %s", url)
					known = true
					break groupScan
				}
			}
		}
		if !known {
			fresh = append(fresh, group)
		}
	}
	return fresh
}
