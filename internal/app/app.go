package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/hyperifyio/goscrape/internal/cache"
	"github.com/hyperifyio/goscrape/internal/extract"
	"github.com/hyperifyio/goscrape/internal/fetch"
	"github.com/hyperifyio/goscrape/internal/metrics"
	"github.com/hyperifyio/goscrape/internal/pipeline"
	"github.com/hyperifyio/goscrape/internal/robots"
	"github.com/hyperifyio/goscrape/internal/search"
)

// ErrNoResults is returned when no fetched page passed the filters. The CLI
// maps it to exit code 2.
var ErrNoResults = errors.New("no pages passed the filters")

type App struct {
	cfg      Config
	http     *http.Client
	cache    *cache.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline

	// Stdout receives json and text output when the output path is "-".
	Stdout io.Writer
}

// New validates cfg and wires the provider, fetcher, filter and metrics.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	lang := search.DefaultLanguage
	if cfg.Language != "" {
		lang = language.MustParse(cfg.Language)
	}

	a := &App{cfg: cfg, http: newHTTPClient(cfg.SSLVerify), Stdout: os.Stdout}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)
	a.metrics = m

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		a.cache = &cache.Store{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	provider, err := newProvider(cfg, a.http)
	if err != nil {
		return nil, err
	}
	policy, err := search.NewDomainPolicy(cfg.DomainAllowlist, cfg.DomainDenylist)
	if err != nil {
		return nil, fmt.Errorf("domain policy: %w", err)
	}

	filter := extract.NewFilter()
	filter.MinCJK = cfg.MinCJK
	if len(cfg.RejectPrefixes) > 0 {
		filter.RejectPrefixes = cfg.RejectPrefixes
	}
	filter.Metrics = m

	fetcher := &fetch.Client{
		HTTPClient:        a.http,
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.Timeout,
		Cache:             a.cache,
		BypassCache:       cfg.BypassCache,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Metrics:           m,
	}
	if cfg.Robots {
		fetcher.Robots = &robots.Checker{HTTPClient: a.http, Cache: a.cache, UserAgent: cfg.UserAgent}
	}

	a.pipeline = &pipeline.Pipeline{
		Provider:    provider,
		Fetcher:     fetcher,
		Filter:      filter,
		Language:    lang,
		Policy:      policy,
		PerDomain:   cfg.PerDomainCap,
		Concurrency: cfg.Concurrency,
		Metrics:     m,
	}
	log.Debug().Str("provider", provider.Name()).Str("lang", lang.String()).Bool("cache", a.cache != nil).Msg("app ready")
	return a, nil
}

// Registry exposes the collectors for a /metrics endpoint.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Close releases idle connections held by the shared transport.
func (a *App) Close() {
	if a.http != nil {
		a.http.CloseIdleConnections()
	}
}

// Run executes one search-and-scrape pass and writes the output.
func (a *App) Run(ctx context.Context) error {
	accepted, err := a.pipeline.Run(ctx, pipeline.Query{Keyword: a.cfg.Keyword, Count: a.cfg.Count})
	if err != nil {
		return err
	}
	if a.cfg.CacheDir != "" && (a.cfg.CacheMaxBytes > 0 || a.cfg.CacheMaxEntries > 0) {
		if n, err := cache.EnforceLimits(a.cfg.CacheDir, a.cfg.CacheMaxBytes, a.cfg.CacheMaxEntries); err != nil {
			log.Warn().Err(err).Msg("cache limit enforcement failed")
		} else if n > 0 {
			log.Debug().Int("evicted", n).Msg("cache entries evicted")
		}
	}
	if len(accepted) == 0 && a.cfg.Count > 0 {
		return ErrNoResults
	}
	keyword := strings.TrimSpace(pipeline.TruncateKeyword(a.cfg.Keyword, pipeline.MaxKeywordRunes))
	if err := WriteOutput(a.Stdout, a.cfg.OutputPath, a.cfg.OutputFormat, keyword, accepted); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Int("pages", len(accepted)).Str("out", a.cfg.OutputPath).Msg("wrote output")
	return nil
}
