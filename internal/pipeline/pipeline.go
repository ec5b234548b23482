// Package pipeline turns a keyword into accepted page texts: search for
// candidates, fetch them concurrently, filter, and truncate.
package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/hyperifyio/goscrape/internal/dispatch"
	"github.com/hyperifyio/goscrape/internal/extract"
	"github.com/hyperifyio/goscrape/internal/metrics"
	"github.com/hyperifyio/goscrape/internal/search"
)

const (
	// MaxKeywordRunes bounds the keyword sent to the search provider.
	MaxKeywordRunes = 100
	// DefaultResults is the result count callers use when none is given.
	DefaultResults = 3
	// overFetch is the candidate multiplier that offsets filter rejections.
	overFetch = 2
)

// Query is one pipeline request.
type Query struct {
	Keyword string
	// Count is the maximum number of accepted pages to return.
	Count int
}

// Pipeline wires a search provider, a fetcher and a filter together. The
// zero Language means search.DefaultLanguage.
type Pipeline struct {
	Provider search.Provider
	Fetcher  dispatch.Fetcher
	Filter   *extract.Filter
	Language language.Tag
	// Policy optionally drops candidates by host before fetching.
	Policy *search.DomainPolicy
	// PerDomain caps candidates per host; zero means no cap.
	PerDomain int
	// Concurrency caps in-flight fetches; zero fetches every candidate at once.
	Concurrency int
	Metrics     *metrics.Metrics
}

// Run returns up to q.Count accepted pages in candidate order. Fewer results
// than requested is normal and not an error. Only a provider failure is
// returned as an error.
func (p *Pipeline) Run(ctx context.Context, q Query) ([]extract.Accepted, error) {
	start := time.Now()
	out, err := p.run(ctx, q)
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case len(out) == 0:
		status = "empty"
	}
	p.Metrics.RecordPipeline(status, time.Since(start))
	return out, err
}

func (p *Pipeline) run(ctx context.Context, q Query) ([]extract.Accepted, error) {
	n := q.Count
	if n <= 0 {
		return []extract.Accepted{}, nil
	}
	keyword := TruncateKeyword(q.Keyword, MaxKeywordRunes)

	results, err := p.Provider.Search(ctx, search.Request{
		Query:    keyword,
		Limit:    overFetch * n,
		Language: p.Language,
		Unique:   true,
	})
	if err != nil {
		log.Error().Err(err).Str("provider", p.Provider.Name()).Msg("search failed")
		return nil, fmt.Errorf("search: %w", err)
	}
	p.Metrics.RecordCandidates(len(results))
	if !p.Policy.Empty() {
		before := len(results)
		results = p.Policy.Filter(results)
		log.Debug().Int("dropped", before-len(results)).Msg("domain policy applied")
	}
	results = search.CapPerDomain(results, p.PerDomain)
	urls := search.URLs(results)
	log.Info().Str("keyword", keyword).Int("candidates", len(urls)).Msg("fetching candidates")

	fetched := dispatch.FetchAll(ctx, p.Fetcher, urls, dispatch.Options{Limit: p.Concurrency})

	filter := p.Filter
	if filter == nil {
		filter = extract.NewFilter()
	}
	accepted := make([]extract.Accepted, 0, n)
	for _, r := range fetched {
		if len(accepted) == n {
			break
		}
		if !r.OK {
			continue
		}
		a, reason := filter.Extract(r.Page.Body)
		if reason != extract.Accept {
			log.Debug().Str("url", r.URL).Str("reason", string(reason)).Msg("page rejected")
			continue
		}
		a.URL = r.URL
		accepted = append(accepted, a)
	}
	log.Info().Int("accepted", len(accepted)).Int("requested", n).Msg("pipeline done")
	return accepted, nil
}

// Search is Run reduced to the accepted texts.
func (p *Pipeline) Search(ctx context.Context, keyword string, n int) ([]string, error) {
	accepted, err := p.Run(ctx, Query{Keyword: keyword, Count: n})
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(accepted))
	for i, a := range accepted {
		texts[i] = a.Text
	}
	return texts, nil
}

// TruncateKeyword returns the first max code points of s.
func TruncateKeyword(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	i := 0
	for pos := range s {
		if i == max {
			return s[:pos]
		}
		i++
	}
	return s
}
