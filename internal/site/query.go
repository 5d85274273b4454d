package site

import "strings"

// Query identifies a song. Artist and Title are required for a lookup;
// Album is only needed by album-indexed sites.
type Query struct {
	Artist string
	Title  string
	Album  string
}

// Valid reports whether the query carries the minimum artist and title.
func (q Query) Valid() bool {
	return strings.TrimSpace(q.Artist) != "" && strings.TrimSpace(q.Title) != ""
}

func (q Query) String() string {
	s := q.Artist + " - " + q.Title
	if q.Album != "" {
		s += " (" + q.Album + ")"
	}
	return s
}
