package app

import "time"

// Defaults applied when neither flags, env nor file set a value.
const (
	DefaultUserAgent     = "golyrics/1.0 (+https://github.com/hyperifyio/golyrics)"
	DefaultTimeout       = 15 * time.Second
	DefaultMaxAttempts   = 2
	DefaultMaxConcurrent = 8
)

// Config holds runtime configuration for the application.
type Config struct {
	// Sites
	SitesFile string
	// Sites restricts and orders the sites tried. Empty means every
	// fetchable site in table order.
	Sites []string
	// Settings override the option defaults (gsearch_no, multi_lang_wikia, ...).
	Settings map[string]string

	// HTTP
	UserAgent     string
	Timeout       time.Duration
	MaxAttempts   int
	MaxConcurrent int
	PerHostRPS    float64
	RespectRobots bool

	// Search. SearchURL replaces the default results page template.
	SearchURL  string
	SearxURL   string
	SearxKey   string
	SearchFile string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	RedisURL         string
	RedisTTL         time.Duration

	MetricsAddr string
	Verbose     bool
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	return c
}
