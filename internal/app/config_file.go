package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Sites struct {
		File  string   `yaml:"file" json:"file"`
		Order []string `yaml:"order" json:"order"`
	} `yaml:"sites" json:"sites"`

	Settings map[string]string `yaml:"settings" json:"settings"`

	HTTP struct {
		UserAgent     string        `yaml:"userAgent" json:"userAgent"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
		MaxAttempts   int           `yaml:"maxAttempts" json:"maxAttempts"`
		MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
		PerHostRPS    float64       `yaml:"perHostRPS" json:"perHostRPS"`
		Robots        bool          `yaml:"robots" json:"robots"`
	} `yaml:"http" json:"http"`

	Search struct {
		URL      string `yaml:"url" json:"url"`
		SearxURL string `yaml:"searxURL" json:"searxURL"`
		SearxKey string `yaml:"searxKey" json:"searxKey"`
		File     string `yaml:"file" json:"file"`
	} `yaml:"search" json:"search"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Redis struct {
		URL string        `yaml:"url" json:"url"`
		TTL time.Duration `yaml:"ttl" json:"ttl"`
	} `yaml:"redis" json:"redis"`

	Metrics struct {
		Addr string `yaml:"addr" json:"addr"`
	} `yaml:"metrics" json:"metrics"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset or still at their flag default. Flags should already
// have been parsed.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.SitesFile == "" && fc.Sites.File != "" {
		cfg.SitesFile = fc.Sites.File
	}
	if len(cfg.Sites) == 0 && len(fc.Sites.Order) > 0 {
		cfg.Sites = append([]string{}, fc.Sites.Order...)
	}
	if len(fc.Settings) > 0 {
		merged := make(map[string]string, len(fc.Settings)+len(cfg.Settings))
		for k, v := range fc.Settings {
			merged[k] = v
		}
		// explicit settings win over the file
		for k, v := range cfg.Settings {
			merged[k] = v
		}
		cfg.Settings = merged
	}

	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.HTTP.UserAgent != "" {
		cfg.UserAgent = fc.HTTP.UserAgent
	}
	if (cfg.Timeout == 0 || cfg.Timeout == DefaultTimeout) && fc.HTTP.Timeout > 0 {
		cfg.Timeout = fc.HTTP.Timeout
	}
	if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == DefaultMaxAttempts) && fc.HTTP.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.HTTP.MaxAttempts
	}
	if (cfg.MaxConcurrent == 0 || cfg.MaxConcurrent == DefaultMaxConcurrent) && fc.HTTP.MaxConcurrent > 0 {
		cfg.MaxConcurrent = fc.HTTP.MaxConcurrent
	}
	if cfg.PerHostRPS == 0 && fc.HTTP.PerHostRPS > 0 {
		cfg.PerHostRPS = fc.HTTP.PerHostRPS
	}
	if !cfg.RespectRobots && fc.HTTP.Robots {
		cfg.RespectRobots = true
	}

	if cfg.SearchURL == "" && fc.Search.URL != "" {
		cfg.SearchURL = fc.Search.URL
	}
	if cfg.SearxURL == "" && fc.Search.SearxURL != "" {
		cfg.SearxURL = fc.Search.SearxURL
	}
	if cfg.SearxKey == "" && fc.Search.SearxKey != "" {
		cfg.SearxKey = fc.Search.SearxKey
	}
	if cfg.SearchFile == "" && fc.Search.File != "" {
		cfg.SearchFile = fc.Search.File
	}

	if cfg.CacheDir == "" && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if cfg.RedisURL == "" && fc.Redis.URL != "" {
		cfg.RedisURL = fc.Redis.URL
	}
	if cfg.RedisTTL == 0 && fc.Redis.TTL > 0 {
		cfg.RedisTTL = fc.Redis.TTL
	}

	if cfg.MetricsAddr == "" && fc.Metrics.Addr != "" {
		cfg.MetricsAddr = fc.Metrics.Addr
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig rejects settings the application cannot run with.
func ValidateConfig(cfg Config) error {
	if cfg.Timeout < 0 || cfg.CacheMaxAge < 0 || cfg.RedisTTL < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	if cfg.MaxAttempts < 0 || cfg.MaxConcurrent < 0 || cfg.PerHostRPS < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	for _, id := range cfg.Sites {
		if strings.TrimSpace(id) == "" {
			return errors.New("config: empty site id in sites list")
		}
	}
	for k := range cfg.Settings {
		if strings.TrimSpace(k) == "" {
			return errors.New("config: empty settings key")
		}
	}
	if cfg.RedisURL != "" && !strings.HasPrefix(cfg.RedisURL, "redis://") && !strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return fmt.Errorf("config: redis url must use redis:// or rediss://, got %q", cfg.RedisURL)
	}
	return nil
}
