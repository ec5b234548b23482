package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hyperifyio/goscrape/internal/app"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoResults = 2
)

func init() {
	// -v is --verbose here, so the version flag keeps only its long name.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
}

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Dotenv values feed the flag EnvVars, so they must be loaded before parsing.
	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("dotenv load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout)
	stop()
	os.Exit(code)
}

// run executes the CLI and maps the outcome onto an exit code: 2 when no
// page passed the filters, 1 on any other failure.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	err := newCLI(stdout).RunContext(ctx, args)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrNoResults):
		log.Warn().Err(err).Msg("no results")
		return exitNoResults
	default:
		log.Error().Err(err).Msg("run failed")
		return exitFailure
	}
}

func newCLI(stdout io.Writer) *cli.App {
	def := app.DefaultConfig()
	c := &cli.App{
		Name:      "goscrape",
		Usage:     "Search a keyword and scrape the CJK text of the result pages",
		UsageText: "goscrape [options] <keyword>",
		Version:   app.BuildVersion + " (" + app.BuildCommit + ")",
		Writer:    stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"GOSCRAPE_CONFIG"}, Usage: "YAML or JSON config file", TakesFile: true},
			&cli.StringFlag{Name: app.KeyKeyword, Aliases: []string{"k"}, EnvVars: []string{"GOSCRAPE_KEYWORD"}, Usage: "Search keyword (only the first 100 characters are used)"},
			&cli.IntFlag{Name: app.KeyCount, Aliases: []string{"n"}, Value: def.Count, EnvVars: []string{"GOSCRAPE_COUNT"}, Usage: "Maximum number of pages to return"},
			&cli.StringFlag{Name: app.KeyLanguage, Value: def.Language, EnvVars: []string{"GOSCRAPE_LANG"}, Usage: "BCP 47 search language, e.g. zh-TW"},

			&cli.StringFlag{Name: app.KeyProvider, Value: def.Provider, EnvVars: []string{"GOSCRAPE_PROVIDER"}, Usage: "Search provider: duckduckgo, searxng, google, rss, file or meta"},
			&cli.StringSliceFlag{Name: app.KeyMetaProviders, EnvVars: []string{"GOSCRAPE_META_PROVIDERS"}, Usage: "Providers queried by the meta provider, in merge order"},
			&cli.StringFlag{Name: app.KeySearxURL, EnvVars: []string{"SEARX_URL", "SEARXNG_URL"}, Usage: "SearxNG base URL"},
			&cli.StringFlag{Name: app.KeySearxKey, EnvVars: []string{"SEARX_KEY", "SEARXNG_KEY"}, Usage: "SearxNG API key (optional)"},
			&cli.StringFlag{Name: app.KeyGoogleKey, EnvVars: []string{"GOOGLE_API_KEY"}, Usage: "Google Custom Search API key"},
			&cli.StringFlag{Name: app.KeyGoogleCX, EnvVars: []string{"GOOGLE_CX"}, Usage: "Google Custom Search engine id"},
			&cli.StringFlag{Name: app.KeyRSSURL, EnvVars: []string{"GOSCRAPE_RSS_URL"}, Usage: "RSS search URL template with {query}, {lang} and {count}"},
			&cli.StringFlag{Name: app.KeySearchFile, EnvVars: []string{"SEARCH_FILE"}, Usage: "JSON file for the offline file provider", TakesFile: true},
			&cli.StringFlag{Name: app.KeyUserAgent, Value: def.UserAgent, EnvVars: []string{"GOSCRAPE_UA"}, Usage: "User-Agent for search and page requests"},

			&cli.DurationFlag{Name: app.KeyTimeout, Value: def.Timeout, EnvVars: []string{"GOSCRAPE_TIMEOUT"}, Usage: "Timeout for each probe and each page fetch"},
			&cli.BoolFlag{Name: app.KeySSLVerify, Value: def.SSLVerify, EnvVars: []string{"SSL_VERIFY"}, Usage: "Verify TLS certificates (--ssl-verify=false accepts self-signed certificates)"},
			&cli.IntFlag{Name: app.KeyConcurrency, EnvVars: []string{"GOSCRAPE_CONCURRENCY"}, Usage: "Maximum in-flight page fetches (0 = all at once)"},
			&cli.Int64Flag{Name: app.KeyMaxBodyBytes, EnvVars: []string{"GOSCRAPE_MAX_BODY_BYTES"}, Usage: "Maximum page body size in bytes (0 = unlimited)"},
			&cli.BoolFlag{Name: app.KeyRobots, EnvVars: []string{"GOSCRAPE_ROBOTS"}, Usage: "Skip pages disallowed by the site's robots.txt"},
			&cli.IntFlag{Name: app.KeyPerDomain, EnvVars: []string{"GOSCRAPE_MAX_PER_DOMAIN"}, Usage: "Maximum candidates kept per host (0 = unlimited)"},

			&cli.IntFlag{Name: app.KeyMinCJK, Value: def.MinCJK, EnvVars: []string{"GOSCRAPE_MIN_CJK"}, Usage: "A page needs more than this many CJK ideographs"},
			&cli.StringSliceFlag{Name: app.KeyRejectPrefix, Value: cli.NewStringSlice(def.RejectPrefixes...), EnvVars: []string{"GOSCRAPE_REJECT_PREFIX"}, Usage: "Reject pages whose text starts with this prefix"},
			&cli.StringSliceFlag{Name: app.KeyDomainsAllow, EnvVars: []string{"DOMAINS_ALLOW"}, Usage: "Host glob allowlist; subdomains of a bare domain are included"},
			&cli.StringSliceFlag{Name: app.KeyDomainsDeny, EnvVars: []string{"DOMAINS_DENY"}, Usage: "Host glob denylist; takes precedence over the allowlist"},

			&cli.StringFlag{Name: app.KeyCacheDir, EnvVars: []string{"CACHE_DIR"}, Usage: "HTTP cache directory (empty disables caching)"},
			&cli.DurationFlag{Name: app.KeyCacheMaxAge, EnvVars: []string{"CACHE_MAX_AGE"}, Usage: "Purge cache entries older than this before running (0 disables)"},
			&cli.BoolFlag{Name: app.KeyCacheClear, Usage: "Clear the cache directory before running"},
			&cli.BoolFlag{Name: app.KeyCacheStrictPerms, Usage: "Restrict cache permissions (0700 dirs, 0600 files)"},
			&cli.Int64Flag{Name: app.KeyCacheMaxBytes, Usage: "Evict least recently used cache entries above this size (0 = unlimited)"},
			&cli.IntFlag{Name: app.KeyCacheMaxEntries, Usage: "Evict least recently used cache entries above this count (0 = unlimited)"},
			&cli.BoolFlag{Name: app.KeyCacheBypass, Usage: "Skip cache revalidation but still store fresh responses"},

			&cli.StringFlag{Name: app.KeyOutput, Aliases: []string{"o"}, Value: def.OutputPath, EnvVars: []string{"GOSCRAPE_OUTPUT"}, Usage: "Output file or directory; - writes to stdout", TakesFile: true},
			&cli.StringFlag{Name: app.KeyFormat, Aliases: []string{"f"}, Value: def.OutputFormat, EnvVars: []string{"GOSCRAPE_FORMAT"}, Usage: "Output format: json, text or dir"},

			&cli.BoolFlag{Name: app.KeyVerbose, Aliases: []string{"v"}, Usage: "Verbose logging (same as --log-level=debug)"},
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"GOSCRAPE_LOG_LEVEL"}, Usage: "Logging level: debug, info, warn or error"},
			&cli.StringFlag{Name: app.KeyMetricsAddr, EnvVars: []string{"GOSCRAPE_METRICS_ADDR"}, Usage: "Serve Prometheus metrics on this address, e.g. :9090"},
		},
		Action: action,
	}
	c.ExitErrHandler = func(*cli.Context, error) {}
	sort.Sort(cli.FlagsByName(c.Flags))
	return c
}

func action(c *cli.Context) error {
	cfg, err := configFromCLI(c)
	if err != nil {
		return err
	}
	setLogLevel(c.String("log-level"), cfg.Verbose)

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	a.Stdout = c.App.Writer

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, a)
		defer shutdown()
	}
	return a.Run(c.Context)
}

// configFromCLI merges flags, environment and the optional config file.
// Flags and environment win over the file, which wins over defaults.
func configFromCLI(c *cli.Context) (app.Config, error) {
	cfg := app.Config{
		Keyword:          c.String(app.KeyKeyword),
		Count:            c.Int(app.KeyCount),
		Language:         c.String(app.KeyLanguage),
		Provider:         c.String(app.KeyProvider),
		MetaProviders:    c.StringSlice(app.KeyMetaProviders),
		SearxURL:         c.String(app.KeySearxURL),
		SearxKey:         c.String(app.KeySearxKey),
		GoogleAPIKey:     c.String(app.KeyGoogleKey),
		GoogleCX:         c.String(app.KeyGoogleCX),
		RSSURLTemplate:   c.String(app.KeyRSSURL),
		SearchFile:       c.String(app.KeySearchFile),
		UserAgent:        c.String(app.KeyUserAgent),
		Timeout:          c.Duration(app.KeyTimeout),
		SSLVerify:        c.Bool(app.KeySSLVerify),
		Concurrency:      c.Int(app.KeyConcurrency),
		MaxBodyBytes:     c.Int64(app.KeyMaxBodyBytes),
		Robots:           c.Bool(app.KeyRobots),
		PerDomainCap:     c.Int(app.KeyPerDomain),
		MinCJK:           c.Int(app.KeyMinCJK),
		RejectPrefixes:   c.StringSlice(app.KeyRejectPrefix),
		DomainAllowlist:  c.StringSlice(app.KeyDomainsAllow),
		DomainDenylist:   c.StringSlice(app.KeyDomainsDeny),
		CacheDir:         c.String(app.KeyCacheDir),
		CacheMaxAge:      c.Duration(app.KeyCacheMaxAge),
		CacheClear:       c.Bool(app.KeyCacheClear),
		CacheStrictPerms: c.Bool(app.KeyCacheStrictPerms),
		CacheMaxBytes:    c.Int64(app.KeyCacheMaxBytes),
		CacheMaxEntries:  c.Int(app.KeyCacheMaxEntries),
		BypassCache:      c.Bool(app.KeyCacheBypass),
		OutputPath:       c.String(app.KeyOutput),
		OutputFormat:     c.String(app.KeyFormat),
		Verbose:          c.Bool(app.KeyVerbose),
		MetricsAddr:      c.String(app.KeyMetricsAddr),
	}
	positional := false
	if cfg.Keyword == "" && c.Args().Present() {
		cfg.Keyword = strings.Join(c.Args().Slice(), " ")
		positional = true
	}
	if path := c.String("config"); path != "" {
		fc, err := app.LoadConfigFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		explicit := func(key string) bool {
			return c.IsSet(key) || (key == app.KeyKeyword && positional)
		}
		if err := app.ApplyFileConfig(&cfg, fc, explicit); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func setLogLevel(level string, verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

// serveMetrics exposes /metrics in the background and returns a shutdown func.
func serveMetrics(addr string, a *app.App) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
