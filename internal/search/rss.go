package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

// RSS implements Provider against search endpoints that answer with a feed,
// such as https://www.bing.com/search?format=rss&q={query}&setlang={lang}.
//
// URLTemplate placeholders: {query} (escaped), {lang} (BCP 47 tag) and
// {count} (requested limit).
type RSS struct {
	URLTemplate string
	HTTPClient  *http.Client
	UserAgent   string
}

func (r *RSS) Name() string { return "rss" }

func (r *RSS) Search(ctx context.Context, req Request) ([]Result, error) {
	if r.URLTemplate == "" {
		return nil, fmt.Errorf("missing rss url template")
	}
	feedURL := r.expand(req)
	log.Debug().Str("url", feedURL).Msg("fetching rss search feed")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if r.UserAgent != "" {
		httpReq.Header.Set("User-Agent", r.UserAgent)
	}
	hc := r.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rss request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rss: %w", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rss http %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	results := make([]Result, 0, len(feed.Items))
	for _, it := range feed.Items {
		results = append(results, Result{
			Title:   strings.TrimSpace(it.Title),
			URL:     strings.TrimSpace(it.Link),
			Snippet: strings.TrimSpace(it.Description),
			Source:  r.Name(),
		})
	}
	return finalize(results, req), nil
}

func (r *RSS) expand(req Request) string {
	count := req.Limit
	if count <= 0 {
		count = 10
	}
	return strings.NewReplacer(
		"{query}", url.QueryEscape(req.Query),
		"{lang}", url.QueryEscape(req.language().String()),
		"{count}", strconv.Itoa(count),
	).Replace(r.URLTemplate)
}

var _ Provider = &RSS{}
