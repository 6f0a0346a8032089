// Package linkedin normalizes and classifies LinkedIn profile URLs.
package linkedin

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the comparison key for a profile URL: trimmed and lowercased.
// Duplicate detection everywhere in the service uses this key.
func NormalizeURL(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsProfileURL reports whether raw looks like a LinkedIn member profile URL.
func IsProfileURL(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return false
	}
	path := strings.Trim(strings.ToLower(u.Path), "/")
	return strings.HasPrefix(path, "in/") && len(path) > len("in/")
}

// ContainsLinkedIn reports whether a free-text cell mentions linkedin.com.
func ContainsLinkedIn(s string) bool {
	return strings.Contains(strings.ToLower(s), "linkedin.com")
}

// CleanResult is the outcome of CleanURLs.
type CleanResult struct {
	URLs    []string // trimmed, first occurrence order
	Invalid []string // not a LinkedIn profile URL
	Repeats []string // repeated within the batch
}

// CleanURLs trims every entry, drops blanks, and splits the rest into valid
// unique profile URLs, invalid entries, and in-batch repeats.
func CleanURLs(raw []string) CleanResult {
	var res CleanResult
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		u := strings.TrimSpace(r)
		if u == "" {
			continue
		}
		if !IsProfileURL(u) {
			res.Invalid = append(res.Invalid, u)
			continue
		}
		key := NormalizeURL(u)
		if seen[key] {
			res.Repeats = append(res.Repeats, u)
			continue
		}
		seen[key] = true
		res.URLs = append(res.URLs, u)
	}
	return res
}

// URLSet is a set of normalized URLs.
type URLSet map[string]struct{}

// NewURLSet builds a set from raw URLs.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts the normalized form of u.
func (s URLSet) Add(u string) {
	s[NormalizeURL(u)] = struct{}{}
}

// Has reports whether the normalized form of u is present.
func (s URLSet) Has(u string) bool {
	_, ok := s[NormalizeURL(u)]
	return ok
}
