package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/golyrics/internal/cache"
	"github.com/hyperifyio/golyrics/internal/extract"
	"github.com/hyperifyio/golyrics/internal/fetch"
	"github.com/hyperifyio/golyrics/internal/metrics"
	"github.com/hyperifyio/golyrics/internal/robots"
	"github.com/hyperifyio/golyrics/internal/search"
	"github.com/hyperifyio/golyrics/internal/settings"
	"github.com/hyperifyio/golyrics/internal/site"
	"github.com/hyperifyio/golyrics/internal/template"
)

var (
	// ErrInvalidQuery is returned when a query lacks an artist or a title.
	ErrInvalidQuery = errors.New("query needs an artist and a title")
	// ErrNotFound is returned by First when no site had the lyrics.
	ErrNotFound = errors.New("lyrics not found")
)

// SiteResult is the outcome of one site's build, fetch and extract
// pipeline. Err is set only when the page could not be fetched. Artist and
// Title are read from the page <title> through the site's title pattern
// and stay empty when it does not match.
type SiteResult struct {
	Site   string
	URL    string
	Result extract.Result
	Artist string
	Title  string
	Err    error
}

// universalSite labels metrics for pages on unknown hosts.
const universalSite = "universal"

type App struct {
	cfg      Config
	registry *site.Registry
	settings settings.Map
	fetcher  *fetch.Client
	provider search.Provider
	metrics  *metrics.Recorder
	redis    *cache.RedisCache
}

func New(ctx context.Context, cfg Config) (*App, error) {
	cfg = cfg.withDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var reg *site.Registry
	var err error
	if cfg.SitesFile != "" {
		reg, err = site.LoadFile(cfg.SitesFile)
	} else {
		reg, err = site.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	for _, id := range cfg.Sites {
		if _, err := reg.Lookup(id); err != nil {
			return nil, err
		}
	}

	a := &App{
		cfg:      cfg,
		registry: reg,
		settings: settings.Defaults().With(cfg.Settings),
		metrics:  metrics.New(),
	}

	var store cache.Store
	switch {
	case cfg.RedisURL != "":
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rc.Ping(pingCtx)
		cancel()
		if err != nil {
			// The cache only saves bandwidth; run without it.
			log.Warn().Err(err).Msg("redis unavailable; continuing without cache")
			_ = rc.Close()
		} else {
			a.redis = rc
			store = rc
		}
	case cfg.CacheDir != "":
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge); err == nil && n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		store = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	httpClient := newHTTPClient(cfg.Timeout)
	a.fetcher = &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.MaxAttempts,
		PerRequestTimeout: cfg.Timeout,
		Cache:             store,
		BypassCache:       cfg.CacheClear,
		RedirectMaxHops:   5,
		MaxConcurrent:     cfg.MaxConcurrent,
		PerHostRPS:        cfg.PerHostRPS,
		MaxBodyBytes:      4 << 20,
	}
	if cfg.RespectRobots {
		a.fetcher.Robots = &robots.Manager{
			HTTPClient:  httpClient,
			Cache:       store,
			UserAgent:   cfg.UserAgent,
			EntryExpiry: time.Hour,
		}
	}

	switch {
	case cfg.SearchFile != "":
		a.provider = &search.FileProvider{Path: cfg.SearchFile}
	case cfg.SearxURL != "":
		a.provider = &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, HTTPClient: httpClient, UserAgent: cfg.UserAgent}
	default:
		engine := search.Google()
		if cfg.SearchURL != "" {
			engine.Descriptor.URL = cfg.SearchURL
		}
		a.provider = search.PageProvider{Engine: engine, Fetcher: a.fetcher}
	}

	log.Debug().Int("sites", reg.Len()).Str("search", a.provider.Name()).Bool("cache", store != nil).Msg("golyrics ready")
	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// Registry returns the loaded site table.
func (a *App) Registry() *site.Registry { return a.registry }

// Metrics returns the recorder counting this app's lookups.
func (a *App) Metrics() *metrics.Recorder { return a.metrics }

// tryOrder resolves ids against the registry. Empty ids means the configured
// sites, or every fetchable site.
func (a *App) tryOrder(ids []string) ([]site.Descriptor, error) {
	if len(ids) == 0 {
		ids = a.cfg.Sites
	}
	if len(ids) == 0 {
		ids = a.registry.Fetchable()
	}
	descs := make([]site.Descriptor, 0, len(ids))
	for _, id := range ids {
		d, err := a.registry.Lookup(id)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// Lookup runs the pipeline for every site concurrently and returns one
// result per site in try order. A failing site never affects the others.
func (a *App) Lookup(ctx context.Context, q site.Query, ids ...string) ([]SiteResult, error) {
	if !q.Valid() {
		return nil, ErrInvalidQuery
	}
	descs, err := a.tryOrder(ids)
	if err != nil {
		return nil, err
	}
	out := make([]SiteResult, len(descs))
	sem := make(chan struct{}, a.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for i, d := range descs {
		wg.Add(1)
		go func(i int, d site.Descriptor) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out[i] = SiteResult{Site: d.ID, URL: template.Build(d, q, a.settings), Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			out[i] = a.lookupOne(ctx, d, q)
		}(i, d)
	}
	wg.Wait()
	return out, nil
}

// First tries the sites one at a time and returns the first hit.
func (a *App) First(ctx context.Context, q site.Query, ids ...string) (SiteResult, error) {
	if !q.Valid() {
		return SiteResult{}, ErrInvalidQuery
	}
	descs, err := a.tryOrder(ids)
	if err != nil {
		return SiteResult{}, err
	}
	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return SiteResult{}, err
		}
		r := a.lookupOne(ctx, d, q)
		if r.Err == nil && r.Result.OK() {
			return r, nil
		}
	}
	return SiteResult{}, ErrNotFound
}

func (a *App) lookupOne(ctx context.Context, d site.Descriptor, q site.Query) SiteResult {
	u := template.Build(d, q, a.settings)
	res := SiteResult{Site: d.ID, URL: u}
	start := time.Now()
	page, err := a.fetcher.Fetch(ctx, u, d.Charset, d.Discriminator(a.settings))
	a.metrics.RecordFetch(d.ID, time.Since(start), err)
	if err != nil {
		log.Debug().Err(err).Str("site", d.ID).Str("url", u).Msg("fetch failed")
		res.Err = err
		return res
	}
	res.Result = extract.Extract(d, page, q)
	if res.Result.OK() {
		res.Artist, res.Title = identify(d, page)
	}
	a.metrics.RecordExtraction(d.ID, res.Result.Status.String())
	log.Debug().Str("site", d.ID).Str("url", u).Str("outcome", res.Result.Status.String()).Msg("extracted")
	return res
}

// Suggest searches the web for pages that may hold the lyrics. Pages on
// known sites come first.
func (a *App) Suggest(ctx context.Context, q site.Query) ([]search.Suggestion, error) {
	if !q.Valid() {
		return nil, ErrInvalidQuery
	}
	cands, err := a.provider.Candidates(ctx, q, a.settings)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", a.provider.Name(), err)
	}
	out := search.Classify(cands, q, a.registry, search.FilterFromSettings(a.settings))
	log.Debug().Int("candidates", len(cands)).Int("suggestions", len(out)).Msg("search done")
	return out, nil
}

// FromURL extracts lyrics from a page picked from the suggestions. Pages on
// known sites go through their descriptor; anything else through the
// universal fallback, bounded by max_size_html and max_size_lyrics.
func (a *App) FromURL(ctx context.Context, rawURL string, q site.Query) (SiteResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return SiteResult{}, fmt.Errorf("invalid url %q", rawURL)
	}
	d, ok := a.registry.ByHost(u.Hostname())
	res := SiteResult{Site: universalSite, URL: rawURL}
	if ok {
		res.Site = d.ID
	}
	start := time.Now()
	page, err := a.fetcher.Fetch(ctx, rawURL, d.Charset, d.Discriminator(a.settings))
	a.metrics.RecordFetch(res.Site, time.Since(start), err)
	if err != nil {
		return SiteResult{}, err
	}
	if ok {
		res.Result = extract.For(d, true).Extract(page, q)
		res.Artist, res.Title = identify(d, page)
	} else {
		page = truncateBytes(page, settings.Int(a.settings, settings.MaxSizeHTML))
		res.Result = extract.For(d, false).Extract(page, q)
		if res.Result.OK() {
			res.Result.Text = truncateBytes(res.Result.Text, settings.Int(a.settings, settings.MaxSizeLyrics))
		}
	}
	a.metrics.RecordExtraction(res.Site, res.Result.Status.String())
	log.Debug().Str("site", res.Site).Str("url", rawURL).Bool("supported", ok).Str("outcome", res.Result.Status.String()).Msg("extracted")
	return res, nil
}

// identify parses the page <title> with the site's title pattern.
func identify(d site.Descriptor, page string) (artist, title string) {
	if d.Title == "" {
		return "", ""
	}
	pageTitle := extract.PageTitle(page)
	artist, title, ok := template.MatchTitle(d.Title, pageTitle)
	if !ok {
		log.Debug().Str("site", d.ID).Str("title", pageTitle).Msg("page title does not match site pattern")
		return "", ""
	}
	return artist, title
}
