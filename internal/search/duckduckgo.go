package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo implements Provider by scraping the JavaScript-free results page.
// It returns one page of results, typically around thirty.
type DuckDuckGo struct {
	// BaseURL overrides the results endpoint; used by tests.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, req Request) ([]Result, error) {
	base := d.BaseURL
	if base == "" {
		base = duckDuckGoURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	query := u.Query()
	query.Set("q", req.Query)
	query.Set("kl", duckDuckGoRegion(req))
	u.RawQuery = query.Encode()

	log.Debug().Str("url", u.String()).Msg("scraping duckduckgo results")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if d.UserAgent != "" {
		httpReq.Header.Set("User-Agent", d.UserAgent)
	}
	hc := d.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	res, err := hc.Do(httpReq)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer res.Body.Close()

	// DuckDuckGo answers throttled clients with 202 and an empty page.
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusAccepted {
		return nil, errors.Wrapf(ErrRateLimited, "duckduckgo status %d", res.StatusCode)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, errors.Errorf("duckduckgo status %d: %s", res.StatusCode, body)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if doc.Find("#challenge-form, .anomaly-modal").Length() > 0 {
		return nil, errors.WithStack(ErrCaptcha)
	}

	var results []Result
	doc.Find(".result").Each(func(i int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := resolveDuckDuckGoLink(s.Find(".result__a").AttrOr("href", ""))
		if link == "" {
			return
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(s.Find(".result__title").Text()),
			URL:     link,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
			Source:  d.Name(),
		})
	})
	return finalize(results, req), nil
}

// resolveDuckDuckGoLink unwraps redirect links of the form
// //duckduckgo.com/l/?uddg=<target>. Direct links are returned unchanged.
func resolveDuckDuckGoLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.String()
	}
	return ""
}

// duckDuckGoRegion maps the request language onto a kl region code.
func duckDuckGoRegion(req Request) string {
	switch req.baseLanguage() {
	case "zh":
		if req.traditional() {
			return "tw-tzh"
		}
		return "cn-zh"
	case "ja":
		return "jp-jp"
	case "ko":
		return "kr-kr"
	default:
		return "wt-wt"
	}
}

var _ Provider = &DuckDuckGo{}
