package fetch

import (
	"context"
	"crypto/tls"
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

	"github.com/hyperifyio/goscrape/internal/cache"
	"github.com/hyperifyio/goscrape/internal/metrics"
)

// DefaultTimeout bounds the probe and the full fetch independently.
const DefaultTimeout = 10 * time.Second

var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrNotHTML           = errors.New("content type is not HTML")
	ErrBodyTooLarge      = errors.New("response body exceeds limit")
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
)

// RobotsChecker decides whether a URL may be fetched at all.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// StatusError reports a non-2xx response to the full fetch.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.Code) }

// Page is the raw result of a successful fetch.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Client fetches single pages: a HEAD probe to check the declared content
// type, then a GET for the body. Fetch never retries.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// PerRequestTimeout bounds each of the probe and the GET. Zero means DefaultTimeout.
	PerRequestTimeout time.Duration
	// InsecureSkipVerify disables certificate verification for this client only.
	InsecureSkipVerify bool
	// Cache, when set, stores GET bodies and revalidates them with conditional headers.
	Cache *cache.Store
	// BypassCache skips conditional headers but still saves fresh responses.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests per client. Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps the GET body. Zero means unlimited.
	MaxBodyBytes int64
	// Robots, when set, is consulted before the probe.
	Robots  RobotsChecker
	Metrics *metrics.Metrics

	httpOnce sync.Once
	http     *http.Client

	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) timeout() time.Duration {
	if c.PerRequestTimeout > 0 {
		return c.PerRequestTimeout
	}
	return DefaultTimeout
}

func (c *Client) getHTTPClient() *http.Client {
	c.httpOnce.Do(func() {
		var base http.Client
		if c.HTTPClient != nil {
			// Copy so the redirect policy never leaks into the caller's client.
			base = *c.HTTPClient
		}
		if c.InsecureSkipVerify {
			tr, ok := base.Transport.(*http.Transport)
			if !ok || tr == nil {
				tr, _ = http.DefaultTransport.(*http.Transport)
			}
			tr = tr.Clone()
			if tr.TLSClientConfig == nil {
				tr.TLSClientConfig = &tls.Config{}
			}
			tr.TLSClientConfig.InsecureSkipVerify = true
			base.Transport = tr
		}
		base.CheckRedirect = c.checkRedirectFunc()
		c.http = &base
	})
	return c.http
}

// Fetch returns the page at rawURL, or false when the page is absent for any
// reason: robots.txt, bad scheme, non-HTML probe, transport error, timeout
// or bad status.
// Failures are logged at debug level and never returned.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Page, bool) {
	start := time.Now()
	page, err := c.fetch(ctx, rawURL)
	result := classify(err)
	c.Metrics.RecordFetch(result, time.Since(start))
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Str("result", result).Msg("fetch absent")
		return Page{}, false
	}
	return page, true
}

func (c *Client) fetch(ctx context.Context, rawURL string) (Page, error) {
	if c.Robots != nil && !c.Robots.Allowed(ctx, rawURL) {
		return Page{}, ErrRobotsDisallowed
	}
	if _, err := c.Probe(ctx, rawURL); err != nil {
		return Page{}, err
	}
	body, ct, err := c.Get(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	return Page{URL: rawURL, ContentType: ct, Body: body}, nil
}

// Probe issues a HEAD request and returns the declared content type. It
// fails with ErrNotHTML when the type carries no HTML indicator. The status
// code is not inspected; only the header matters.
func (c *Client) Probe(ctx context.Context, rawURL string) (string, error) {
	// The slot is taken before the timeout starts so queueing does not eat
	// into the request budget.
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()

	req, cancel, err := c.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	defer cancel()

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("probe: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if !IsHTMLContentType(ct) {
		return ct, fmt.Errorf("%w: %q", ErrNotHTML, ct)
	}
	return ct, nil
}

// Get issues a GET and returns the body and content type. With a cache
// configured it sends conditional headers and serves the cached body on 304.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	var meta *cache.Entry
	if c.Cache != nil && !c.BypassCache {
		if m, err := c.Cache.LoadMeta(ctx, rawURL); err == nil {
			meta = m
		}
	}

	if err := c.acquire(ctx); err != nil {
		return nil, "", err
	}
	defer c.release()

	req, cancel, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer cancel()
	if meta != nil {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && meta != nil {
		body, err := c.Cache.LoadBody(ctx, rawURL)
		if err != nil {
			return nil, "", fmt.Errorf("load cached body: %w", err)
		}
		log.Debug().Str("url", rawURL).Msg("served from cache after 304")
		return body, meta.ContentType, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{Code: resp.StatusCode}
	}

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if c.Cache != nil && resp.StatusCode == http.StatusOK {
		if err := c.Cache.Save(ctx, rawURL, ct, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), body); err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("cache save failed")
		}
	}
	return body, ct, nil
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.MaxBodyBytes <= 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(io.LimitReader(r, c.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > c.MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return b, nil
}

// newRequest builds a request whose context carries the per-request timeout.
// The returned cancel func must be called once the body has been consumed.
func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, context.CancelFunc, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, cancel, nil
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
		if !isHTTPScheme(req.URL) {
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

// IsHTMLContentType reports whether a Content-Type header declares HTML.
func IsHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func classify(err error) string {
	if err == nil {
		return metrics.FetchOK
	}
	var se *StatusError
	var ne net.Error
	switch {
	case errors.Is(err, ErrNotHTML):
		return metrics.FetchNotHTML
	case errors.Is(err, ErrUnsupportedScheme):
		return metrics.FetchBadScheme
	case errors.Is(err, ErrRobotsDisallowed):
		return metrics.FetchRobots
	case errors.As(err, &se):
		return metrics.FetchStatus
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return metrics.FetchTimeout
	default:
		return metrics.FetchError
	}
}

// acquire waits for a limiter slot or for ctx to end.
func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
