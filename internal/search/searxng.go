package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// searxMaxPages bounds paging when an instance keeps returning few results.
const searxMaxPages = 5

// SearxNG implements Provider against a SearxNG instance's /search endpoint.
type SearxNG struct {
	BaseURL    string
	APIKey     string // optional
	HTTPClient *http.Client
	UserAgent  string // optional custom UA
}

func (s *SearxNG) Name() string { return "searxng" }

// Search pages through results until req.Limit is reached or a page yields
// nothing new.
func (s *SearxNG) Search(ctx context.Context, req Request) ([]Result, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("missing searxng base url")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	// Instances repeat hits across pages, so results are deduplicated while
	// paging regardless of req.Unique.
	var all []Result
	seen := map[string]struct{}{}
	for page := 1; page <= searxMaxPages; page++ {
		results, err := s.searchPage(ctx, req, page)
		if err != nil {
			if page > 1 && len(all) > 0 {
				// Later pages failing still leaves a usable first batch.
				break
			}
			return nil, err
		}
		before := len(all)
		for _, r := range results {
			r.URL = strings.TrimSpace(r.URL)
			if r.URL == "" {
				continue
			}
			key := normalizeURL(r.URL)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, r)
		}
		if len(all) >= limit || len(all) == before {
			break
		}
	}
	req.Limit = limit
	return finalize(all, req), nil
}

func (s *SearxNG) searchPage(ctx context.Context, req Request, page int) ([]Result, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	q := u.Query()
	q.Set("q", req.Query)
	q.Set("format", "json")
	q.Set("language", req.language().String())
	q.Set("safesearch", "1")
	q.Set("categories", "general")
	if page > 1 {
		q.Set("pageno", strconv.Itoa(page))
	}
	if s.APIKey != "" {
		q.Set("apikey", s.APIKey)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		httpReq.Header.Set("User-Agent", s.UserAgent)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("searxng: %w", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("searxng status: %d", resp.StatusCode)
	}
	var sr searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}
	out := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Snippet: strings.TrimSpace(r.Content),
			Source:  s.Name(),
		})
	}
	return out, nil
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}
