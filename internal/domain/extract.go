package domain

import "strings"

// ExtractCity attributes a raw article to exactly one registry city.
// queryCity is the city the source adapter was invoked for, or empty for
// un-scoped sources like feed sweeps; when it resolves against the registry
// it always wins, so per-city fetches never misattribute an article that
// happens to mention a bigger city. Returns false when nothing matches, in
// which case the article is dropped.
func (r *Registry) ExtractCity(raw RawArticle, queryCity string) (CityID, bool) {
	if queryCity != "" {
		if id, ok := r.Lookup(queryCity); ok {
			return id, true
		}
	}

	if raw.Location != "" {
		if id, ok := r.Lookup(raw.Location); ok {
			return id, true
		}
		// Location metadata is sometimes "City, Country"; try the first segment.
		if head, _, found := strings.Cut(raw.Location, ","); found {
			if id, ok := r.Lookup(head); ok {
				return id, true
			}
		}
	}

	if id, ok := r.firstMention(raw.Title); ok {
		return id, true
	}
	return r.firstMention(raw.Description)
}

// firstMention scans free text for tracked city names and returns the first
// registry entry (population-rank order) mentioned. Registry-order scanning
// keeps the result deterministic when several tracked cities appear.
func (r *Registry) firstMention(text string) (CityID, bool) {
	if text == "" {
		return "", false
	}
	norm := NormalizeCityName(text)
	for i, name := range r.normNames {
		if containsWord(norm, name) {
			return r.cities[i].Name, true
		}
	}
	return "", false
}

// containsWord reports whether needle occurs in haystack on word boundaries,
// so "Lima" does not fire on "climate".
func containsWord(haystack, needle string) bool {
	for from := 0; from <= len(haystack)-len(needle); {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	return i == 0 || !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	return i == len(s) || !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= utf8RuneSelf
}

const utf8RuneSelf = 0x80
