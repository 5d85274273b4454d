// Package settings holds the runtime options some descriptors depend on
// (multi-language toggles, search filter expressions). Values are plain
// strings and are never persisted or validated here.
package settings

import (
	"strconv"
	"strings"
)

// Getter is the read side of the settings collaborator.
type Getter interface {
	Get(key string) string
}

// Map is a Getter backed by a map. It must not be mutated once shared.
type Map map[string]string

func (m Map) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// With returns a copy of m with overrides applied on top.
func (m Map) With(overrides map[string]string) Map {
	out := make(Map, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Bool interprets the value under key as a boolean flag.
func Bool(g Getter, key string) bool {
	if g == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(g.Get(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Int interprets the value under key as a non-negative integer. Missing or
// malformed values yield 0.
func Int(g Getter, key string) int {
	if g == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(g.Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Well-known keys.
const (
	MultiLangWikia     = "multi_lang_wikia"
	SearchResults      = "gsearch_no"
	SearchExtra        = "gsearch"
	SearchFilterExpr   = "gsearch_filter_expr"
	SearchFilterURL    = "gsearch_filter_url"
	SearchFilterArtist = "gsearch_filter_artist"
	MaxSizeHTML        = "max_size_html"
	MaxSizeLyrics      = "max_size_lyrics"
)

// Defaults returns the option values used when nothing is configured.
func Defaults() Map {
	return Map{
		MultiLangWikia:     "false",
		SearchResults:      "20",
		SearchExtra:        "lyrics",
		SearchFilterExpr:   "lyric|letra|tekst|testo|paroles",
		SearchFilterURL:    "hostname",
		SearchFilterArtist: "true",
		MaxSizeHTML:        "150000",
		MaxSizeLyrics:      "10000",
	}
}
