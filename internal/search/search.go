package search

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

var (
	// ErrRateLimited marks a provider refusing service because of request volume.
	ErrRateLimited = errors.New("search provider rate limited")
	// ErrCaptcha marks a provider answering with a bot challenge instead of results.
	ErrCaptcha = errors.New("search provider returned a captcha")
)

// DefaultLanguage is used when a request carries no language.
var DefaultLanguage = language.Chinese

// Result represents a single search hit from any provider.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Source  string // provider name for observability
}

// Request describes one search. Limit bounds the number of results; Unique
// asks for duplicate URLs to be dropped before the limit is applied.
type Request struct {
	Query    string
	Limit    int
	Language language.Tag
	Unique   bool
}

// Provider is a minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, req Request) ([]Result, error)
	Name() string
}

func (r Request) language() language.Tag {
	if r.Language == language.Und {
		return DefaultLanguage
	}
	return r.Language
}

// baseLanguage returns the ISO 639 code of the request language, e.g. "zh".
func (r Request) baseLanguage() string {
	b, _ := r.language().Base()
	return b.String()
}

// traditional reports whether the request language is written in Han
// Traditional, e.g. zh-TW or zh-Hant.
func (r Request) traditional() bool {
	s, _ := r.language().Script()
	return s.String() == "Hant"
}

// finalize drops empty and, when requested, duplicate URLs, then applies the limit.
func finalize(results []Result, req Request) []Result {
	seen := map[string]struct{}{}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		r.URL = strings.TrimSpace(r.URL)
		if r.URL == "" {
			continue
		}
		if req.Unique {
			key := normalizeURL(r.URL)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, r)
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	return out
}

// normalizeURL canonicalizes a URL for duplicate detection: fragment
// dropped, host lowercased, common tracking parameters removed.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// URLs returns the URL of each result in order.
func URLs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}
