package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("SITES", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nREDIS_URL=redis://localhost:6379/1\nSITES='azlyrics.com, lyriki.com'\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("REDIS_URL"); got != "redis://localhost:6379/1" {
		t.Fatalf("REDIS_URL=%q", got)
	}
	var cfg Config
	ApplyEnvToConfig(&cfg)
	if len(cfg.Sites) != 2 || cfg.Sites[0] != "azlyrics.com" || cfg.Sites[1] != "lyriki.com" {
		t.Fatalf("unexpected sites: %v", cfg.Sites)
	}
}

func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("USER_AGENT", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("USER_AGENT=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("USER_AGENT=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("USER_AGENT"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_KeepsExplicitValues(t *testing.T) {
	t.Setenv("SEARX_URL", "")
	t.Setenv("SEARXNG_URL", "http://searxng.example")
	t.Setenv("CACHE_DIR", "/tmp/golyrics-cache")
	t.Setenv("CACHE_MAX_AGE", "48h")
	t.Setenv("VERBOSE", "yes")
	t.Setenv("PER_HOST_RPS", "2.5")
	t.Setenv("GOLYRICS_SITES_FILE", "/etc/golyrics/sites.yaml")

	cfg := Config{SitesFile: "mine.yaml"}
	ApplyEnvToConfig(&cfg)
	if cfg.SearxURL != "http://searxng.example" {
		t.Fatalf("SEARXNG_URL fallback: %q", cfg.SearxURL)
	}
	if cfg.CacheDir != "/tmp/golyrics-cache" || cfg.CacheMaxAge != 48*time.Hour {
		t.Fatalf("cache settings: %q %v", cfg.CacheDir, cfg.CacheMaxAge)
	}
	if !cfg.Verbose || cfg.PerHostRPS != 2.5 {
		t.Fatalf("verbose=%v rps=%v", cfg.Verbose, cfg.PerHostRPS)
	}
	if cfg.SitesFile != "mine.yaml" {
		t.Fatalf("explicit value overwritten: %q", cfg.SitesFile)
	}
}

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "golyrics.yaml")
	content := `
sites:
  file: sites.yaml
  order: [lyriki.com, azlyrics.com]
settings:
  gsearch_no: "5"
http:
  timeout: 3s
  maxConcurrent: 2
cache:
  dir: /var/cache/golyrics
  maxAge: 24h
redis:
  ttl: 1h
`
	if err := os.WriteFile(yml, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(yml)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	cfg := Config{Timeout: DefaultTimeout, Settings: map[string]string{"gsearch": "letra"}}
	ApplyFileConfig(&cfg, fc)
	if cfg.SitesFile != "sites.yaml" || len(cfg.Sites) != 2 || cfg.Sites[0] != "lyriki.com" {
		t.Fatalf("sites not applied: %+v", cfg)
	}
	if cfg.Timeout != 3*time.Second || cfg.MaxConcurrent != 2 {
		t.Fatalf("http not applied: %v %d", cfg.Timeout, cfg.MaxConcurrent)
	}
	if cfg.CacheDir != "/var/cache/golyrics" || cfg.CacheMaxAge != 24*time.Hour || cfg.RedisTTL != time.Hour {
		t.Fatalf("cache not applied: %+v", cfg)
	}
	if cfg.Settings["gsearch_no"] != "5" || cfg.Settings["gsearch"] != "letra" {
		t.Fatalf("settings not merged: %v", cfg.Settings)
	}

	js := filepath.Join(dir, "golyrics.json")
	if err := os.WriteFile(js, []byte(`{"http":{"userAgent":"ua/2"},"verbose":true}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err = LoadConfigFile(js)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	cfg = Config{UserAgent: DefaultUserAgent}
	ApplyFileConfig(&cfg, fc)
	if cfg.UserAgent != "ua/2" || !cfg.Verbose {
		t.Fatalf("json not applied: %+v", cfg)
	}
}

func TestApplyFileConfig_FlagsWin(t *testing.T) {
	var fc FileConfig
	fc.Cache.Dir = "/file"
	fc.Settings = map[string]string{"gsearch_no": "5"}
	cfg := Config{CacheDir: "/flag", Settings: map[string]string{"gsearch_no": "30"}}
	ApplyFileConfig(&cfg, fc)
	if cfg.CacheDir != "/flag" || cfg.Settings["gsearch_no"] != "30" {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(Config{}); err != nil {
		t.Fatalf("zero config should be valid: %v", err)
	}
	bad := []Config{
		{Timeout: -time.Second},
		{MaxConcurrent: -1},
		{Sites: []string{"azlyrics.com", " "}},
		{RedisURL: "localhost:6379"},
		{Settings: map[string]string{"": "x"}},
	}
	for i, c := range bad {
		if err := ValidateConfig(c); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
