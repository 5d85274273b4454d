// Package template renders descriptor URL templates and matches page titles
// against descriptor title patterns.
package template

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
)

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Build renders the URL template of d for q. Query placeholders are passed
// through the descriptor's format rules; any other placeholder is looked up
// in s. Missing values render as the empty string, so Build never fails.
func Build(d site.Descriptor, q site.Query, s settings.Getter) string {
	if d.URL == "" {
		return ""
	}
	return placeholderRE.ReplaceAllStringFunc(d.URL, func(m string) string {
		name := m[1 : len(m)-1]
		if site.IsQueryPlaceholder(name) {
			v := queryValue(name, q)
			for _, r := range d.Format {
				v = r.Apply(v)
			}
			return escape(v)
		}
		if s == nil {
			return ""
		}
		return escape(s.Get(name))
	})
}

func queryValue(name string, q site.Query) string {
	switch name {
	case "artist":
		return q.Artist
	case "title":
		return q.Title
	case "album":
		return q.Album
	case "Artist":
		return titleCase(q.Artist)
	case "Title":
		return titleCase(q.Title)
	case "Album":
		return titleCase(q.Album)
	case "a":
		r, n := utf8.DecodeRuneInString(strings.TrimSpace(q.Artist))
		if n == 0 {
			return ""
		}
		return strings.ToLower(string(r))
	}
	return ""
}

// titleCase upper-cases the first letter of each word and lowers the rest.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// Capitalize upper-cases the first letter of each word and leaves the rest
// untouched, so "AC/DC" stays as written.
func Capitalize(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// escape percent-encodes bytes that cannot appear in a request line.
// Reserved characters and existing escapes are left alone because format
// rules may already have produced them.
func escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c >= 0x7f || strings.IndexByte("\"<>\\^`{|}", c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// MatchTitle recovers artist and title from text using a title pattern such
// as "{artist} - {title} LYRICS". Matching is case-insensitive and anchored
// at the start of text. Trailing text is allowed unless the pattern ends
// with a placeholder.
// Entities in the pattern's literal text are decoded, so text must be
// decoded too.
func MatchTitle(pattern, text string) (artist, title string, ok bool) {
	re, err := compileTitle(pattern)
	if err != nil || re == nil {
		return "", "", false
	}
	m := re.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	for i, name := range re.SubexpNames() {
		switch name {
		case "artist":
			artist = strings.TrimSpace(m[i])
		case "title":
			title = strings.TrimSpace(m[i])
		}
	}
	return artist, title, true
}

func compileTitle(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString(`(?is)^`)
	seen := map[string]bool{}
	last := 0
	endsWithGroup := false
	for _, loc := range placeholderRE.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(html.UnescapeString(pattern[last:loc[0]])))
		name := strings.ToLower(pattern[loc[2]:loc[3]])
		if (name == "artist" || name == "title") && !seen[name] {
			seen[name] = true
			b.WriteString(`(?P<` + name + `>.+?)`)
		} else {
			b.WriteString(`.*?`)
		}
		last = loc[1]
		endsWithGroup = last == len(pattern)
	}
	b.WriteString(regexp.QuoteMeta(html.UnescapeString(pattern[last:])))
	if endsWithGroup {
		b.WriteString(`$`)
	}
	return regexp.Compile(b.String())
}
