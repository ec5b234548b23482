package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goscrape/internal/cache"
)

// Source reports where a robots.txt came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceCache304
)

const maxRobotsBytes = 512 << 10

// Checker fetches robots.txt once per origin and answers Allowed for page
// URLs. A 4xx robots.txt allows everything; a 5xx disallows everything. A
// transport failure allows the page and is retried on the next call.
type Checker struct {
	HTTPClient *http.Client
	// Cache, when set, stores robots.txt bodies and revalidates them with ETags.
	Cache     *cache.Store
	UserAgent string
	// TTL is how long parsed rules stay in memory. Zero means 30 minutes.
	TTL time.Duration

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

// Allowed reports whether rawURL may be fetched. Unparseable URLs are
// allowed so the fetcher rejects them with its own reason.
func (c *Checker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	rules, _, err := c.Get(ctx, robotsURL)
	if err != nil {
		log.Debug().Err(err).Str("robots", robotsURL).Msg("robots.txt unavailable, allowing")
		return true
	}
	return rules.Allowed(c.UserAgent, u.RequestURI())
}

// Get returns the parsed rules at robotsURL, from memory while fresh.
func (c *Checker) Get(ctx context.Context, robotsURL string) (Rules, Source, error) {
	c.mu.Lock()
	if c.now == nil {
		c.now = time.Now
	}
	if c.mem == nil {
		c.mem = make(map[string]memEntry)
	}
	if ent, ok := c.mem[robotsURL]; ok && c.now().Before(ent.expiry) {
		c.mu.Unlock()
		return ent.rules, SourceMemory, nil
	}
	c.mu.Unlock()

	rules, src, err := c.fetch(ctx, robotsURL)
	if err != nil {
		return Rules{}, src, err
	}
	c.store(robotsURL, rules)
	return rules, src, nil
}

func (c *Checker) fetch(ctx context.Context, robotsURL string) (Rules, Source, error) {
	var meta *cache.Entry
	if c.Cache != nil {
		if m, err := c.Cache.LoadMeta(ctx, robotsURL); err == nil {
			meta = m
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if meta != nil {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Rules{}, SourceNetwork, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && meta != nil:
		body, err := c.Cache.LoadBody(ctx, robotsURL)
		if err != nil {
			return Rules{}, SourceCache304, fmt.Errorf("load cached robots: %w", err)
		}
		return Parse(string(body)), SourceCache304, nil
	case resp.StatusCode >= 500:
		return disallowAll, SourceNetwork, nil
	case resp.StatusCode >= 400:
		return allowAll, SourceNetwork, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Rules{}, SourceNetwork, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("read robots: %w", err)
	}
	if c.Cache != nil {
		if err := c.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data); err != nil {
			log.Warn().Err(err).Str("url", robotsURL).Msg("cache save failed")
		}
	}
	return Parse(string(data)), SourceNetwork, nil
}

func (c *Checker) store(key string, rules Rules) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	c.mu.Lock()
	c.mem[key] = memEntry{rules: rules, expiry: c.now().Add(ttl)}
	c.mu.Unlock()
}
