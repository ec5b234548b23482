package search

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	googlePageSize = 10
	// The Custom Search API refuses start indexes past 100.
	googleMaxStart = 91
)

// Google implements Provider with the Custom Search JSON API.
type Google struct {
	APIKey string
	CX     string
	// Endpoint overrides the API base URL; used by tests.
	Endpoint string
	// HTTPClient, when set, carries the requests so TLS and proxy settings
	// match the other providers. The API key is then added per request.
	HTTPClient *http.Client
	UserAgent  string
}

func (g *Google) Name() string { return "google" }

// Search requests pages of ten until req.Limit results are collected or the
// API runs out of items.
func (g *Google) Search(ctx context.Context, req Request) ([]Result, error) {
	if g.APIKey == "" || g.CX == "" {
		return nil, errors.New("google search requires an api key and a cx")
	}
	var opts []option.ClientOption
	if g.HTTPClient != nil {
		hc := *g.HTTPClient
		hc.Transport = &googleKeyTransport{key: g.APIKey, userAgent: g.UserAgent, base: g.HTTPClient.Transport}
		opts = append(opts, option.WithHTTPClient(&hc))
	} else {
		opts = append(opts, option.WithAPIKey(g.APIKey))
		if g.UserAgent != "" {
			opts = append(opts, option.WithUserAgent(g.UserAgent))
		}
	}
	if g.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Endpoint))
	}
	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = googlePageSize
	}
	log.Debug().Str("query", req.Query).Int("limit", limit).Msg("google custom search")

	var results []Result
	for start := 1; start <= googleMaxStart && len(results) < limit; start += googlePageSize {
		num := min(googlePageSize, limit-len(results))
		call := service.Cse.List().
			Context(ctx).
			Q(req.Query).
			Cx(g.CX).
			Num(int64(num)).
			Start(int64(start)).
			Lr(googleLanguageRestrict(req)).
			Hl(req.language().String())
		res, err := call.Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				return nil, errors.Wrap(ErrRateLimited, "google")
			}
			return nil, errors.WithStack(err)
		}
		for _, item := range res.Items {
			results = append(results, Result{
				Title:   item.Title,
				URL:     item.Link,
				Snippet: item.Snippet,
				Source:  g.Name(),
			})
		}
		if len(res.Items) < num {
			break
		}
	}
	req.Limit = limit
	return finalize(results, req), nil
}

// googleLanguageRestrict maps the request language onto an lr value such as
// lang_zh-TW. Chinese is the only language the API splits by script.
func googleLanguageRestrict(req Request) string {
	base := req.baseLanguage()
	if base == "zh" {
		if req.traditional() {
			return "lang_zh-TW"
		}
		return "lang_zh-CN"
	}
	return "lang_" + base
}

// googleKeyTransport adds the API key to each request. option.WithAPIKey is
// ignored once option.WithHTTPClient is given.
type googleKeyTransport struct {
	key       string
	userAgent string
	base      http.RoundTripper
}

func (t *googleKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

var _ Provider = &Google{}
