package services

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"openwater-events-scraper/internal/models"
)

// DefaultFuzzyCutoff is the minimum token-sort similarity score (0-100)
// for a candidate organizer name to match an existing organizer.
const DefaultFuzzyCutoff = 80

// OrganizerMatcher resolves a candidate organizer name against known
// organizers by fuzzy name similarity. The cutoff is injected at
// construction so boundary values can be tested directly.
type OrganizerMatcher struct {
	cutoff int
}

// NewOrganizerMatcher creates a matcher with the given similarity cutoff.
func NewOrganizerMatcher(cutoff int) *OrganizerMatcher {
	if cutoff <= 0 {
		cutoff = DefaultFuzzyCutoff
	}
	return &OrganizerMatcher{cutoff: cutoff}
}

// Resolve returns the known organizer whose name scores highest against
// the candidate name, provided the score reaches the cutoff; otherwise
// nil (the caller creates a new organizer). The scorer is token-order
// insensitive, so "Swim Club Ocean" still matches "Ocean Swim Club".
// For a fixed snapshot of known organizers the result is deterministic:
// equal scores are broken by first-encountered order.
func (m *OrganizerMatcher) Resolve(name string, known []models.Organizer) *models.Organizer {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	bestScore := 0
	bestIndex := -1
	for i, organizer := range known {
		score := fuzzy.TokenSortRatio(name, organizer.Name)
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if bestIndex >= 0 && bestScore >= m.cutoff {
		return &known[bestIndex]
	}
	return nil
}
