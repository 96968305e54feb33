package services

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.example.com/events/", "example.com/events"},
		{"http://example.com/events", "example.com/events"},
		{"HTTPS://Example.COM/Events", "example.com/events"},
		{"example.com/events", "example.com/events"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.input); got != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestFilterKnownURLGroups(t *testing.T) {
	known := []string{
		"https://www.swimcal.com/events/lake-crossing",
		"https://other.org/race",
	}

	groups := [][]string{
		{"https://swimcal.com/events/lake-crossing"},               // same URL, different prefix form
		{"https://swimcal.com/events/lake-crossing/register"},      // known URL contained in candidate
		{"https://newsite.com/swim", "https://newsite.com/detail"}, // genuinely new
	}

	fresh := FilterKnownURLGroups(groups, known)
	if len(fresh) != 1 {
		t.Fatalf("Expected exactly 1 fresh group, got %d", len(fresh))
	}
	if fresh[0][0] != "https://newsite.com/swim" {
		t.Errorf("Expected the new site to survive the filter, got %v", fresh[0])
	}
}

func TestFilterKnownURLGroupsEmptyInputs(t *testing.T) {
	if fresh := FilterKnownURLGroups(nil, []string{"https://a.com"}); len(fresh) != 0 {
		t.Errorf("Expected no groups from nil input, got %v", fresh)
	}

	groups := [][]string{{"https://a.com/x"}}
	fresh := FilterKnownURLGroups(groups, nil)
	if len(fresh) != 1 {
		t.Errorf("Expected all groups to pass with no known URLs, got %d", len(fresh))
	}

	// An empty string in the known list must not swallow everything.
	fresh = FilterKnownURLGroups(groups, []string{""})
	if len(fresh) != 1 {
		t.Errorf("Expected empty known URL to match nothing, got %d groups", len(fresh))
	}
}
