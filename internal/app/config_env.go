package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads dotenv files into the process environment. Later files
// override earlier ones; missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Overload(p); err != nil {
			return err
		}
	}
	return nil
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, envKey string) {
		if *dst == "" {
			*dst = os.Getenv(envKey)
		}
	}
	setString(&cfg.SitesFile, "GOLYRICS_SITES_FILE")
	setString(&cfg.UserAgent, "USER_AGENT")
	setString(&cfg.SearchURL, "SEARCH_URL")
	setString(&cfg.SearxKey, "SEARX_KEY")
	setString(&cfg.SearchFile, "SEARCH_FILE")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	if cfg.SearxURL == "" {
		// Support both SEARX_URL and SEARXNG_URL; prefer SEARX_URL if set
		v := os.Getenv("SEARX_URL")
		if v == "" {
			v = os.Getenv("SEARXNG_URL")
		}
		cfg.SearxURL = v
	}
	if len(cfg.Sites) == 0 {
		cfg.Sites = splitList(os.Getenv("SITES"))
	}

	setDuration := func(dst *time.Duration, envKey string) {
		if *dst != 0 {
			return
		}
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(envKey))); err == nil {
			*dst = d
		}
	}
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setDuration(&cfg.RedisTTL, "REDIS_TTL")

	if cfg.PerHostRPS == 0 {
		if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("PER_HOST_RPS")), 64); err == nil && f > 0 {
			cfg.PerHostRPS = f
		}
	}

	// Booleans
	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				*dst = true
			}
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.RespectRobots, "RESPECT_ROBOTS")
}
