package search

import (
	"context"

	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
	"github.com/hyperifyio/golyrics/internal/template"
)

// GoogleURL is the default results page template. Settings placeholders
// are filled from the settings passed to URL.
const GoogleURL = "http://www.google.com/search?num={gsearch_no}&q={artist}+{title}+{gsearch}"

// Engine describes a search engine results page the same way a site
// descriptor describes a lyrics page.
type Engine struct {
	Descriptor site.Descriptor
}

// Google returns the default engine.
func Google() Engine {
	return Engine{Descriptor: site.Descriptor{
		ID:      "google.com",
		URL:     GoogleURL,
		Charset: "utf-8",
		Format:  []site.FormatRule{{Chars: "&", Rep: ""}},
		Discriminators: []string{
			settings.SearchFilterExpr,
			settings.SearchFilterURL,
			settings.SearchFilterArtist,
		},
	}}
}

// URL builds the results page URL for q.
func (e Engine) URL(q site.Query, s settings.Getter) string {
	return template.Build(e.Descriptor, q, s)
}

// Discriminator folds the filter settings into the request identity, since
// they change the suggestions without changing the URL.
func (e Engine) Discriminator(s settings.Getter) string {
	return e.Descriptor.Discriminator(s)
}

// Fetcher retrieves a page decoded from charset.
type Fetcher interface {
	Fetch(ctx context.Context, url, charset, discriminator string) (string, error)
}

// PageProvider scrapes an engine's HTML results page through a Fetcher.
type PageProvider struct {
	Engine  Engine
	Fetcher Fetcher
}

func (p PageProvider) Name() string { return p.Engine.Descriptor.ID }

func (p PageProvider) Candidates(ctx context.Context, q site.Query, s settings.Getter) ([]Candidate, error) {
	page, err := p.Fetcher.Fetch(ctx, p.Engine.URL(q, s), p.Engine.Descriptor.Charset, p.Engine.Discriminator(s))
	if err != nil {
		return nil, err
	}
	return Anchors(page), nil
}
