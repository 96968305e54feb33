package models

import "strings"

// countryCodes maps lowercase country names, as the extractor tends to
// emit them, to ISO 3166-1 alpha-2 codes. Crawled sources are almost
// entirely European and northern African; a few frequent long-haul
// destinations are included as well.
var countryCodes = map[string]string{
	"albania":                "AL",
	"algeria":                "DZ",
	"austria":                "AT",
	"belgium":                "BE",
	"bosnia and herzegovina": "BA",
	"bulgaria":               "BG",
	"croatia":                "HR",
	"cyprus":                 "CY",
	"czech republic":         "CZ",
	"czechia":                "CZ",
	"denmark":                "DK",
	"egypt":                  "EG",
	"estonia":                "EE",
	"finland":                "FI",
	"france":                 "FR",
	"germany":                "DE",
	"greece":                 "GR",
	"hungary":                "HU",
	"iceland":                "IS",
	"ireland":                "IE",
	"italy":                  "IT",
	"latvia":                 "LV",
	"libya":                  "LY",
	"lithuania":              "LT",
	"luxembourg":             "LU",
	"malta":                  "MT",
	"monaco":                 "MC",
	"montenegro":             "ME",
	"morocco":                "MA",
	"netherlands":            "NL",
	"the netherlands":        "NL",
	"north macedonia":        "MK",
	"norway":                 "NO",
	"poland":                 "PL",
	"portugal":               "PT",
	"romania":                "RO",
	"serbia":                 "RS",
	"slovakia":               "SK",
	"slovenia":               "SI",
	"spain":                  "ES",
	"sweden":                 "SE",
	"switzerland":            "CH",
	"tunisia":                "TN",
	"turkey":                 "TR",
	"ukraine":                "UA",
	"united kingdom":         "GB",
	"uk":                     "GB",
	"great britain":          "GB",
	"england":                "GB",
	"scotland":               "GB",
	"wales":                  "GB",
	"united states":          "US",
	"usa":                    "US",
	"australia":              "AU",
	"canada":                 "CA",
	"thailand":               "TH",
	"united arab emirates":   "AE",
}

var countryNames = func() map[string]string {
	names := make(map[string]string, len(countryCodes))
	for name, code := range countryCodes {
		// The longest name wins so short aliases like "uk" never
		// become the canonical form.
		if _, ok := names[code]; !ok || len(name) > len(names[code]) {
			names[code] = name
		}
	}
	return names
}()

// CountryCode maps a country name to its ISO alpha-2 code. A value that
// already looks like an alpha-2 code is passed through upper-cased.
// Returns "" when the country is unknown.
func CountryCode(name string) string {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) == 2 {
		upper := strings.ToUpper(trimmed)
		for _, code := range countryCodes {
			if code == upper {
				return upper
			}
		}
	}
	return countryCodes[strings.ToLower(trimmed)]
}

// CountryName maps an ISO alpha-2 code back to a human-readable name for
// geocoding queries. Returns the code itself when unknown.
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return titleCase(name)
	}
	return code
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" || w == "the" && i > 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
