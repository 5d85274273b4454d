package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/golyrics/internal/cache"
)

func robotsServer(t *testing.T, hits *int32, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_MemoryThenETagRevalidation(t *testing.T) {
	t.Parallel()
	var hits int32
	const etag = `W/"v1"`
	srv := robotsServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /lyrics/private\n"))
	})

	ctx := context.Background()
	m := &Manager{
		HTTPClient:        srv.Client(),
		Cache:             &cache.HTTPCache{Dir: t.TempDir()},
		UserAgent:         "golyrics-test/1.0",
		EntryExpiry:       time.Hour,
		AllowPrivateHosts: true,
	}
	u := srv.URL + "/robots.txt"

	rules, src, err := m.Get(ctx, u)
	if err != nil || src != SourceNetwork {
		t.Fatalf("first get: src=%v err=%v", src, err)
	}
	if len(rules.Groups) != 1 || rules.Groups[0].Disallow[0] != "/lyrics/private" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if _, src, _ = m.Get(ctx, u); src != SourceMemory {
		t.Fatalf("expected memory hit, got %v", src)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 server hit, got %d", hits)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rules, src, err = m.Get(ctx, u)
	if err != nil || src != SourceCache304 {
		t.Fatalf("revalidation: src=%v err=%v", src, err)
	}
	if rules.IsAllowed("golyrics", "/lyrics/private/x") {
		t.Fatalf("cached rules should still disallow")
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 server hits, got %d", hits)
	}
}

func TestManager_MissingRobotsAllows(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := robotsServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	m := &Manager{HTTPClient: srv.Client(), AllowPrivateHosts: true}
	ok, delay, err := m.Allowed(context.Background(), srv.URL+"/song/a-b.html")
	if err != nil || !ok || delay != nil {
		t.Fatalf("404 should allow: ok=%v delay=%v err=%v", ok, delay, err)
	}
	if ok, _, _ := m.Allowed(context.Background(), srv.URL+"/other"); !ok {
		t.Fatalf("second check should allow")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected a single robots fetch, got %d", hits)
	}
}

func TestManager_ServerErrorDisallowsTemporarily(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := robotsServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	m := &Manager{HTTPClient: srv.Client(), AllowPrivateHosts: true, EntryExpiry: time.Minute}
	ok, _, err := m.Allowed(context.Background(), srv.URL+"/x")
	if err != nil || ok {
		t.Fatalf("5xx should disallow: ok=%v err=%v", ok, err)
	}
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, _ = m.Allowed(context.Background(), srv.URL+"/x")
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expired entry should be refetched, got %d hits", hits)
	}
}

func TestManager_RejectsPrivateHostsAndBadSchemes(t *testing.T) {
	m := &Manager{}
	if _, _, err := m.Get(context.Background(), "http://127.0.0.1/robots.txt"); err == nil {
		t.Fatalf("expected private host error")
	}
	if _, _, err := m.Get(context.Background(), "ftp://example.com/robots.txt"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestAllowed_QueryAndCrawlDelay(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := robotsServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: golyrics\nDisallow: /search?\nCrawl-delay: 2\n"))
	})
	m := &Manager{HTTPClient: srv.Client(), UserAgent: "golyrics/1.0", AllowPrivateHosts: true}
	ok, delay, err := m.Allowed(context.Background(), srv.URL+"/search?q=muse")
	if err != nil || ok {
		t.Fatalf("query path should be disallowed: ok=%v err=%v", ok, err)
	}
	if delay == nil || *delay != 2*time.Second {
		t.Fatalf("unexpected delay: %v", delay)
	}
	if ok, _, _ := m.Allowed(context.Background(), srv.URL+"/search"); !ok {
		t.Fatalf("path without query should be allowed")
	}
}

func TestIsAllowed_AgentPrecedenceAndSpecificity(t *testing.T) {
	rules := parseRobots(`
# comment
User-agent: *
Disallow: /

User-agent: golyrics
Disallow: /private
Allow: /private/public
Allow: /p
`)
	cases := []struct {
		ua, path string
		want     bool
	}{
		{"SomeBot/1.0", "/lyrics", false},
		{"golyrics/1.0", "/lyrics", true},
		{"golyrics/1.0", "/private/x", false},
		{"golyrics/1.0", "/private/public/x", true},
	}
	for _, c := range cases {
		if got := rules.IsAllowed(c.ua, c.path); got != c.want {
			t.Fatalf("IsAllowed(%q, %q) = %v, want %v", c.ua, c.path, got, c.want)
		}
	}
}

func TestIsAllowed_WildcardsAndAnchors(t *testing.T) {
	rules := parseRobots("User-agent: *\nDisallow: /*.php$\nDisallow: /tmp*\n")
	if rules.IsAllowed("x", "/index.php") {
		t.Fatalf("anchored wildcard should disallow")
	}
	if !rules.IsAllowed("x", "/index.php?x=1") {
		t.Fatalf("anchor should not match with query suffix")
	}
	if rules.IsAllowed("x", "/tmpfile") {
		t.Fatalf("prefix wildcard should disallow")
	}
}
