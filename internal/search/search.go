// Package search turns search engine result pages into lyrics suggestions,
// ranking hits on sites with a descriptor ahead of the rest.
package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
)

// Suggestion is a candidate page that may hold the lyrics. Supported is true
// when a site descriptor serves the URL's host.
type Suggestion struct {
	Artist    string
	Title     string
	URL       string
	Supported bool
}

// Candidate is a raw search hit before filtering and classification.
type Candidate struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Provider produces raw search hits for a query.
type Provider interface {
	Candidates(ctx context.Context, q site.Query, s settings.Getter) ([]Candidate, error)
	Name() string
}

// HostLookup resolves a hostname to the descriptor serving it.
// *site.Registry implements it.
type HostLookup interface {
	ByHost(host string) (site.Descriptor, bool)
}

// URLFilter selects which part of a hit URL the allowed patterns are
// matched against.
type URLFilter string

const (
	FilterNone     URLFilter = "no filter"
	FilterURL      URLFilter = "url"
	FilterHostname URLFilter = "hostname"
)

// FilterConfig controls which hits become suggestions.
type FilterConfig struct {
	URLFilter URLFilter
	// AllowedPatterns are literal, case-insensitive substrings. A hit is
	// kept when any of them occurs in the filtered part of its URL.
	AllowedPatterns      []string
	RequireArtistInTitle bool
}

// FilterFromSettings reads the gsearch_filter_* settings.
func FilterFromSettings(s settings.Getter) FilterConfig {
	f := FilterConfig{URLFilter: FilterHostname}
	if s == nil {
		return f
	}
	switch URLFilter(strings.ToLower(strings.TrimSpace(s.Get(settings.SearchFilterURL)))) {
	case FilterNone:
		f.URLFilter = FilterNone
	case FilterURL:
		f.URLFilter = FilterURL
	}
	for _, p := range strings.Split(s.Get(settings.SearchFilterExpr), "|") {
		if p = strings.TrimSpace(p); p != "" {
			f.AllowedPatterns = append(f.AllowedPatterns, p)
		}
	}
	f.RequireArtistInTitle = settings.Bool(s, settings.SearchFilterArtist)
	return f
}

// matcher compiles AllowedPatterns. It returns nil when every URL passes.
func (f FilterConfig) matcher() *regexp.Regexp {
	if f.URLFilter == FilterNone || len(f.AllowedPatterns) == 0 {
		return nil
	}
	parts := make([]string, 0, len(f.AllowedPatterns))
	for _, p := range f.AllowedPatterns {
		parts = append(parts, "("+regexp.QuoteMeta(p)+")")
	}
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}
