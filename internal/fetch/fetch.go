package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/golyrics/internal/cache"
	"github.com/hyperifyio/golyrics/internal/robots"
)

// Error is returned for every failed fetch. It carries the requested URL
// and wraps the underlying cause.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return "fetch " + e.URL + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	if e.Code >= 500 {
		return fmt.Sprintf("server error: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Client wraps http.Client and provides timeouts, limited retry on transient
// errors, per-host politeness and optional conditional revalidation.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// Cache stores bodies and validators for conditional requests.
	Cache cache.Store
	// If true, skip conditional headers but still save the latest response.
	BypassCache bool

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// PerHostRPS limits the request rate to any single host. Zero means
	// unlimited. Burst defaults to 1.
	PerHostRPS float64
	Burst      int
	// MaxBodyBytes truncates response bodies. Zero means unlimited.
	MaxBodyBytes int64
	// Robots, when set, is consulted before every request. A crawl delay
	// slows the host's limiter below PerHostRPS.
	Robots *robots.Manager

	// internal limiter initialized on first use when MaxConcurrent > 0
	limiter     chan struct{}
	limiterOnce sync.Once

	hostMu    sync.Mutex
	hostLimit map[string]*rate.Limiter
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Fetch retrieves rawURL and decodes the body to a string. charset is the
// encoding label the site is known to use; when it is empty or unknown the
// Content-Type header and the document itself decide. discriminator is
// folded into the cache identity.
func (c *Client) Fetch(ctx context.Context, rawURL, charset, discriminator string) (string, error) {
	body, ct, err := c.get(ctx, rawURL, discriminator)
	if err != nil {
		return "", err
	}
	text, err := Decode(body, charset, ct)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}
	return text, nil
}

// Get issues a GET with context, user-agent, and bounded retry for
// transient errors. It returns the raw body and its content type.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	return c.get(ctx, rawURL, "")
}

func (c *Client) get(ctx context.Context, rawURL, discriminator string) ([]byte, string, error) {
	if err := c.checkRobots(ctx, rawURL); err != nil {
		return nil, "", &Error{URL: rawURL, Err: err}
	}
	key := cache.Key(rawURL, discriminator)
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, key); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := c.tryOnce(ctx, rawURL, etag, lastMod)
		if err == nil {
			if res.status == http.StatusNotModified {
				if body, ct, ok := c.cached(ctx, key); ok {
					return body, ct, nil
				}
				if etag == "" && lastMod == "" {
					lastErr = errors.New("not modified without a cached body")
					break
				}
				// validators without a body; ask again unconditionally
				etag, lastMod = "", ""
				i--
				continue
			}
			if c.Cache != nil {
				meta := cache.HTTPEntry{
					URL:           rawURL,
					Discriminator: discriminator,
					ContentType:   res.contentType,
					ETag:          res.etag,
					LastModified:  res.lastModified,
				}
				if err := c.Cache.Save(ctx, key, meta, res.body); err != nil {
					log.Debug().Err(err).Str("url", rawURL).Msg("cache save failed")
				}
			}
			return res.body, res.contentType, nil
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 || ctx.Err() != nil {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", i+1).Msg("retrying fetch")
		select {
		case <-ctx.Done():
			return nil, "", &Error{URL: rawURL, Err: ctx.Err()}
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, "", &Error{URL: rawURL, Err: lastErr}
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, string, bool) {
	if c.Cache == nil {
		return nil, "", false
	}
	meta, err := c.Cache.LoadMeta(ctx, key)
	if err != nil {
		return nil, "", false
	}
	body, err := c.Cache.LoadBody(ctx, key)
	if err != nil {
		return nil, "", false
	}
	return body, meta.ContentType, true
}

type response struct {
	body         []byte
	contentType  string
	etag         string
	lastModified string
	status       int
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, etag string, lastMod string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return response{}, fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	if err := c.waitHost(ctx, req.URL.Hostname()); err != nil {
		return response{}, err
	}

	// Concurrency gate per client instance
	c.acquire()
	defer c.release()

	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	out := response{
		contentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		status:       resp.StatusCode,
	}
	if resp.StatusCode == http.StatusNotModified {
		return out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{Code: resp.StatusCode}
	}
	if !isAllowedContentType(out.contentType) {
		return out, fmt.Errorf("unsupported content type: %s", out.contentType)
	}
	var r io.Reader = resp.Body
	if c.MaxBodyBytes > 0 {
		r = io.LimitReader(resp.Body, c.MaxBodyBytes)
	}
	out.body, err = io.ReadAll(r)
	if err != nil {
		return out, fmt.Errorf("read body: %w", err)
	}
	return out, nil
}

func isTransient(err error) bool {
	// HTTP 5xx, per-request deadlines, dropped connections and dial or DNS
	// failures are worth another try. Redirect and scheme errors are not.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// isAllowedContentType accepts markup and plain text. Some lyrics APIs
// answer with XML or bare text rather than HTML.
func isAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, p := range []string{"text/html", "application/xhtml+xml", "text/xml", "application/xml", "text/plain"} {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}
	return false
}

// checkRobots returns robots.ErrDisallowed when robots.txt forbids rawURL.
// Failures to evaluate robots.txt do not block the fetch.
func (c *Client) checkRobots(ctx context.Context, rawURL string) error {
	if c.Robots == nil {
		return nil
	}
	ok, delay, err := c.Robots.Allowed(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug().Err(err).Str("url", rawURL).Msg("robots.txt check skipped")
		return nil
	}
	if !ok {
		return robots.ErrDisallowed
	}
	if delay != nil && *delay > 0 {
		if u, err := url.Parse(rawURL); err == nil {
			c.slowHost(u.Hostname(), *delay)
		}
	}
	return nil
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.hostMu.Lock()
	defer c.hostMu.Unlock()
	if c.hostLimit == nil {
		c.hostLimit = make(map[string]*rate.Limiter)
	}
	l, ok := c.hostLimit[host]
	if !ok {
		burst := c.Burst
		if burst <= 0 {
			burst = 1
		}
		limit := rate.Inf
		if c.PerHostRPS > 0 {
			limit = rate.Limit(c.PerHostRPS)
		}
		l = rate.NewLimiter(limit, burst)
		c.hostLimit[host] = l
	}
	return l
}

// slowHost lowers the host's rate to one request per delay when that is
// slower than the current limit.
func (c *Client) slowHost(host string, delay time.Duration) {
	l := c.limiterFor(host)
	if every := rate.Every(delay); every < l.Limit() {
		l.SetLimit(every)
		l.SetBurst(1)
	}
}

func (c *Client) waitHost(ctx context.Context, host string) error {
	return c.limiterFor(host).Wait(ctx)
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
		// should not happen, but avoid blocking
	}
}
