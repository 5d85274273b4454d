package search

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/golyrics/internal/site"
	"github.com/hyperifyio/golyrics/internal/template"
)

// UnknownArtist is shown when a hit's title cannot be parsed.
const UnknownArtist = "unknown"

var (
	emphasisRE = regexp.MustCompile(`(?i)</?(?:em|b)>`)
	anchorRE   = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*"([^"]*)"[^>]*>(.*?)</a>`)
	tagRE      = regexp.MustCompile(`<[^>]*>`)
	spacesRE   = regexp.MustCompile(`\s+`)
)

// Extract lists the suggestions found on a search results page.
func Extract(page string, q site.Query, hosts HostLookup, f FilterConfig) []Suggestion {
	return Classify(Anchors(page), q, hosts, f)
}

// Anchors returns every link on a results page whose target is an
// absolute http(s) URL, with its visible text. Redirect links of the form
// /url?q=<target> are unwrapped.
func Anchors(page string) []Candidate {
	page = emphasisRE.ReplaceAllString(page, "")
	var out []Candidate
	for _, m := range anchorRE.FindAllStringSubmatch(page, -1) {
		u, ok := decodeURL(m[1])
		if !ok {
			continue
		}
		title := html.UnescapeString(tagRE.ReplaceAllString(m[2], " "))
		title = strings.TrimSpace(spacesRE.ReplaceAllString(title, " "))
		if title == "" {
			continue
		}
		out = append(out, Candidate{URL: u, Title: title})
	}
	return out
}

func decodeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if strings.HasPrefix(raw, "/url?") {
		v, err := url.ParseQuery(strings.TrimPrefix(raw, "/url?"))
		if err != nil {
			return "", false
		}
		raw = v.Get("q")
		if raw == "" {
			raw = v.Get("url")
		}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", false
	}
	return u.String(), true
}

// Classify filters candidates and turns them into suggestions. Hits served
// by a known descriptor come first; both groups keep encounter order and
// duplicates are kept.
func Classify(cands []Candidate, q site.Query, hosts HostLookup, f FilterConfig) []Suggestion {
	re := f.matcher()
	artist := strings.ToLower(strings.TrimSpace(q.Artist))

	var supported, universal []Suggestion
	for _, c := range cands {
		u, err := url.Parse(c.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		if re != nil {
			target := c.URL
			if f.URLFilter == FilterHostname {
				target = u.Hostname()
			}
			if !re.MatchString(target) {
				continue
			}
		}
		if f.RequireArtistInTitle && artist != "" && !strings.Contains(strings.ToLower(c.Title), artist) {
			continue
		}

		var d site.Descriptor
		ok := false
		if hosts != nil {
			d, ok = hosts.ByHost(u.Hostname())
		}
		s := Suggestion{URL: c.URL, Supported: ok, Title: c.Title}
		if ok && d.Title != "" {
			if a, t, matched := template.MatchTitle(d.Title, c.Title); matched {
				s.Artist, s.Title = a, t
			}
		}
		s.Artist = template.Capitalize(s.Artist)
		s.Title = template.Capitalize(s.Title)
		if s.Artist == "" {
			s.Artist = UnknownArtist
		}
		if ok {
			supported = append(supported, s)
			continue
		}
		s.Title += " (" + u.Hostname() + ")"
		universal = append(universal, s)
	}
	return append(supported, universal...)
}
