package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/golyrics/internal/app"
	"github.com/hyperifyio/golyrics/internal/extract"
	"github.com/hyperifyio/golyrics/internal/site"
)

// Exit codes.
const (
	exitFound    = 0
	exitError    = 1
	exitNotFound = 2
)

// settingsFlag collects repeated -set key=value pairs.
type settingsFlag map[string]string

func (s settingsFlag) String() string {
	parts := make([]string, 0, len(s))
	for k, v := range s {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (s settingsFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	s[strings.TrimSpace(k)] = val
	return nil
}

type options struct {
	query   site.Query
	suggest bool
	url     string
	all     bool
	plain   bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		opts       options
		cfg        app.Config
		sites      string
		configPath string
		envFiles   string
		verbose    bool
	)
	set := settingsFlag{}

	flag.StringVar(&opts.query.Artist, "artist", "", "Artist name")
	flag.StringVar(&opts.query.Title, "title", "", "Song title")
	flag.StringVar(&opts.query.Album, "album", "", "Album name (optional)")
	flag.StringVar(&sites, "sites", "", "Comma-separated site ids to try, in order (default: every site)")
	flag.StringVar(&configPath, "config", "", "Path to YAML or JSON config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load")
	flag.BoolVar(&opts.suggest, "suggest", false, "Search the web for pages that may hold the lyrics")
	flag.StringVar(&opts.url, "url", "", "Extract lyrics from this page")
	flag.BoolVar(&opts.all, "all", false, "Query every site and print each outcome")
	flag.BoolVar(&opts.plain, "plain", false, "Print lyrics as plain text instead of an HTML fragment")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Var(set, "set", "Override an option as key=value (repeatable), e.g. gsearch_no=10")
	flag.StringVar(&cfg.SitesFile, "sites.file", "", "Descriptor table file replacing the built-in one")
	flag.StringVar(&cfg.UserAgent, "ua", "", "User-Agent for outgoing requests")
	flag.DurationVar(&cfg.Timeout, "timeout", 0, "Per-request timeout (default 15s)")
	flag.IntVar(&cfg.MaxConcurrent, "concurrency", 0, "Maximum requests in flight (default 8)")
	flag.Float64Var(&cfg.PerHostRPS, "rps", 0, "Requests per second to any single host; 0 disables")
	flag.BoolVar(&cfg.RespectRobots, "robots", false, "Honor robots.txt")
	flag.StringVar(&cfg.SearxURL, "searx.url", "", "SearxNG base URL used for -suggest instead of scraping Google")
	flag.StringVar(&cfg.SearchFile, "search.file", "", "JSON file of search hits used for -suggest (offline)")
	flag.StringVar(&cfg.MetricsAddr, "metrics.addr", "", "Serve Prometheus metrics on this address and keep running until interrupted")
	flag.StringVar(&cfg.CacheDir, "cache.dir", "", "Revalidation cache directory; empty disables")
	flag.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this; 0 disables")
	flag.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear the cache directory before running")
	flag.StringVar(&cfg.RedisURL, "redis.url", "", "Redis URL for the revalidation cache, e.g. redis://localhost:6379/0")
	flag.Parse()

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		log.Error().Err(err).Msg("load env files")
		os.Exit(exitError)
	}
	cfg.Sites = splitSites(sites)
	if len(set) > 0 {
		cfg.Settings = set
	}
	cfg.Verbose = verbose
	// flags > env > file
	app.ApplyEnvToConfig(&cfg)
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("load config")
			os.Exit(exitError)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if err := app.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(exitError)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := run(ctx, cfg, opts, os.Stdout)
	switch {
	case code == exitNotFound:
		log.Info().Msg("no lyrics found")
	case err != nil:
		log.Error().Err(err).Msg("run failed")
	}
	stop()
	os.Exit(code)
}

func splitSites(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, cfg app.Config, opts options, w io.Writer) (int, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return exitError, fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.Metrics().Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server")
			}
		}()
		defer func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics; interrupt to exit")
			<-ctx.Done()
		}()
	}

	switch {
	case opts.url != "":
		r, err := a.FromURL(ctx, opts.url, opts.query)
		if err != nil {
			return exitError, err
		}
		if r.Artist != "" {
			log.Info().Str("site", r.Site).Str("artist", r.Artist).Str("title", r.Title).Msg("page identified")
		}
		return printResult(w, r.Result, opts.plain), nil
	case opts.suggest:
		sugg, err := a.Suggest(ctx, opts.query)
		if err != nil {
			return exitCode(err), err
		}
		for i, s := range sugg {
			mark := " "
			if s.Supported {
				mark = "*"
			}
			fmt.Fprintf(w, "%2d.%s %s - %s\n    %s\n", i+1, mark, s.Artist, s.Title, s.URL)
		}
		if len(sugg) == 0 {
			return exitNotFound, nil
		}
		return exitFound, nil
	case opts.all:
		results, err := a.Lookup(ctx, opts.query)
		if err != nil {
			return exitCode(err), err
		}
		code := exitNotFound
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(w, "== %s: error: %v\n", r.Site, r.Err)
				continue
			}
			fmt.Fprintf(w, "== %s: %s\n", r.Site, r.Result.Status)
			if r.Result.OK() {
				code = exitFound
				fmt.Fprintln(w, render(r.Result.Text, opts.plain))
			}
		}
		return code, nil
	default:
		r, err := a.First(ctx, opts.query)
		if err != nil {
			return exitCode(err), err
		}
		log.Info().Str("site", r.Site).Str("url", r.URL).Str("artist", r.Artist).Str("title", r.Title).Msg("lyrics found")
		return printResult(w, r.Result, opts.plain), nil
	}
}

func exitCode(err error) int {
	if errors.Is(err, app.ErrNotFound) {
		return exitNotFound
	}
	return exitError
}

func printResult(w io.Writer, res extract.Result, plain bool) int {
	if !res.OK() {
		fmt.Fprintln(w, res.String())
		return exitNotFound
	}
	fmt.Fprintln(w, render(res.Text, plain))
	return exitFound
}

func render(text string, plain bool) string {
	if plain {
		return extract.PlainText(text)
	}
	return text
}
