// Package site holds the static table of lyrics site descriptors and the
// registry used to look them up by id or hostname.
package site

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hyperifyio/golyrics/internal/markup"
	"github.com/hyperifyio/golyrics/internal/settings"
)

// ExtractFunc replaces the generic extract/exclude pipeline for sites that
// need bespoke logic. An empty result means nothing was found.
type ExtractFunc func(page string, q Query) (string, error)

// FormatRule replaces every rune of Chars with Rep.
type FormatRule struct {
	Chars string
	Rep   string
}

// Apply runs the replacement over s.
func (r FormatRule) Apply(s string) string {
	if r.Chars == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if strings.ContainsRune(r.Chars, c) {
			b.WriteString(r.Rep)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Descriptor tells the engine how to build a request for one site and how
// to cut the lyrics out of the response. Descriptors are never mutated
// after the registry is built; slices are shared between copies.
type Descriptor struct {
	ID      string
	URL     string
	Format  []FormatRule
	Title   string
	Charset string

	// Extract holds alternatives tried in order. Each alternative is a
	// chain whose rules narrow the previous rule's output.
	Extract [][]markup.Rule
	Exclude []markup.Rule
	Invalid []string

	Custom     ExtractFunc
	CustomName string

	// Discriminators name settings whose values change what a request
	// returns without changing its URL.
	Discriminators []string

	// StripMarkup asks the engine to reduce the fragment to plain text.
	StripMarkup bool
}

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the placeholder names used by the URL template.
func (d Descriptor) Placeholders() []string {
	m := placeholderRE.FindAllStringSubmatch(d.URL, -1)
	out := make([]string, 0, len(m))
	for _, g := range m {
		out = append(out, g[1])
	}
	return out
}

// IsQueryPlaceholder reports whether name is resolved from the Query.
func IsQueryPlaceholder(name string) bool {
	switch name {
	case "artist", "title", "album", "Artist", "Title", "Album", "a":
		return true
	}
	return false
}

// Host returns the normalized hostname the descriptor serves, taken from
// the URL template or, when there is none, from the first word of the id.
func (d Descriptor) Host() string {
	if d.URL != "" {
		tmpl := d.URL
		if i := strings.IndexByte(tmpl, '{'); i >= 0 {
			tmpl = tmpl[:i]
		}
		if u, err := url.Parse(tmpl); err == nil && u.Hostname() != "" {
			return NormalizeHost(u.Hostname())
		}
	}
	return idHost(d.ID)
}

func idHost(id string) string {
	f := strings.Fields(id)
	if len(f) == 0 {
		return ""
	}
	return NormalizeHost(f[0])
}

// NormalizeHost lowercases host and drops a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// Discriminator folds the values of the descriptor's discriminating
// settings into one string. It is empty when the descriptor has none.
func (d Descriptor) Discriminator(s settings.Getter) string {
	if len(d.Discriminators) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Discriminators))
	for _, k := range d.Discriminators {
		v := ""
		if s != nil {
			v = s.Get(k)
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&")
}

var errNoExtraction = errors.New("descriptor needs extract rules or a custom extractor")

// Validate checks the invariants a descriptor must satisfy before it can
// be registered.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("descriptor id is empty")
	}
	if len(d.Extract) == 0 && d.Custom == nil {
		return fmt.Errorf("%s: %w", d.ID, errNoExtraction)
	}
	for i, chain := range d.Extract {
		if len(chain) == 0 {
			return fmt.Errorf("%s: extract alternative %d is empty", d.ID, i+1)
		}
		for _, r := range chain {
			if err := validateRule(r); err != nil {
				return fmt.Errorf("%s: extract alternative %d: %w", d.ID, i+1, err)
			}
		}
	}
	for _, r := range d.Exclude {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("%s: exclude: %w", d.ID, err)
		}
	}
	for _, s := range d.Invalid {
		if s == "" {
			return fmt.Errorf("%s: empty invalid indicator", d.ID)
		}
	}
	for _, p := range d.Placeholders() {
		if !IsQueryPlaceholder(p) {
			return fmt.Errorf("%s: unknown url placeholder {%s}", d.ID, p)
		}
	}
	return nil
}

func validateRule(r markup.Rule) error {
	if r.IsTag() {
		return nil
	}
	if r.Start == "" || r.End == "" {
		return fmt.Errorf("rule %s needs both start and end markers", r)
	}
	return nil
}
