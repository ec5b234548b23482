package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	yaml "gopkg.in/yaml.v3"
)

// Setting names shared by the CLI flags and ApplyFileConfig. A setting that
// was given on the command line or through the environment is never
// overridden by the config file.
const (
	KeyKeyword          = "keyword"
	KeyCount            = "count"
	KeyLanguage         = "lang"
	KeyProvider         = "provider"
	KeyMetaProviders    = "meta.providers"
	KeySearxURL         = "searx.url"
	KeySearxKey         = "searx.key"
	KeyGoogleKey        = "google.key"
	KeyGoogleCX         = "google.cx"
	KeyRSSURL           = "rss.url"
	KeySearchFile       = "search.file"
	KeyUserAgent        = "ua"
	KeyTimeout          = "timeout"
	KeySSLVerify        = "ssl-verify"
	KeyConcurrency      = "concurrency"
	KeyMaxBodyBytes     = "max.bodyBytes"
	KeyRobots           = "robots"
	KeyPerDomain        = "max.perDomain"
	KeyMinCJK           = "min.cjk"
	KeyRejectPrefix     = "reject.prefix"
	KeyDomainsAllow     = "domains.allow"
	KeyDomainsDeny      = "domains.deny"
	KeyCacheDir         = "cache.dir"
	KeyCacheMaxAge      = "cache.maxAge"
	KeyCacheClear       = "cache.clear"
	KeyCacheStrictPerms = "cache.strictPerms"
	KeyCacheMaxBytes    = "cache.maxBytes"
	KeyCacheMaxEntries  = "cache.maxEntries"
	KeyCacheBypass      = "cache.bypass"
	KeyOutput           = "output"
	KeyFormat           = "format"
	KeyVerbose          = "verbose"
	KeyMetricsAddr      = "metrics.addr"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to the dotted flag names.
type FileConfig struct {
	Keyword  string `yaml:"keyword" json:"keyword"`
	Count    *int   `yaml:"count" json:"count"`
	Language string `yaml:"language" json:"language"`
	Output   string `yaml:"output" json:"output"`
	Format   string `yaml:"format" json:"format"`
	Verbose  *bool  `yaml:"verbose" json:"verbose"`

	Search struct {
		Provider  string   `yaml:"provider" json:"provider"`
		Providers []string `yaml:"providers" json:"providers"`
		File      string   `yaml:"file" json:"file"`
		UA        string   `yaml:"ua" json:"ua"`
		PerDomain int      `yaml:"perDomain" json:"perDomain"`
	} `yaml:"search" json:"search"`

	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"searx" json:"searx"`

	Google struct {
		Key string `yaml:"key" json:"key"`
		CX  string `yaml:"cx" json:"cx"`
	} `yaml:"google" json:"google"`

	RSS struct {
		URL string `yaml:"url" json:"url"`
	} `yaml:"rss" json:"rss"`

	Fetch struct {
		Timeout      string `yaml:"timeout" json:"timeout"`
		SSLVerify    *bool  `yaml:"sslVerify" json:"sslVerify"`
		Concurrency  int    `yaml:"concurrency" json:"concurrency"`
		MaxBodyBytes int64  `yaml:"maxBodyBytes" json:"maxBodyBytes"`
		Robots       *bool  `yaml:"robots" json:"robots"`
	} `yaml:"fetch" json:"fetch"`

	Filter struct {
		MinCJK         *int     `yaml:"minCJK" json:"minCJK"`
		RejectPrefixes []string `yaml:"rejectPrefixes" json:"rejectPrefixes"`
	} `yaml:"filter" json:"filter"`

	Domains struct {
		Allow []string `yaml:"allow" json:"allow"`
		Deny  []string `yaml:"deny" json:"deny"`
	} `yaml:"domains" json:"domains"`

	Cache struct {
		Dir         string `yaml:"dir" json:"dir"`
		MaxAge      string `yaml:"maxAge" json:"maxAge"`
		Clear       *bool  `yaml:"clear" json:"clear"`
		StrictPerms *bool  `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64  `yaml:"maxBytes" json:"maxBytes"`
		MaxEntries  int    `yaml:"maxEntries" json:"maxEntries"`
		Bypass      *bool  `yaml:"bypass" json:"bypass"`
	} `yaml:"cache" json:"cache"`

	Metrics struct {
		Addr string `yaml:"addr" json:"addr"`
	} `yaml:"metrics" json:"metrics"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto cfg. Settings for which
// explicit reports true were given on the command line or through the
// environment and keep their value. A nil explicit treats every setting as
// unset, so the file wins over defaults.
func ApplyFileConfig(cfg *Config, fc FileConfig, explicit func(key string) bool) error {
	if cfg == nil {
		return nil
	}
	free := func(key string) bool { return explicit == nil || !explicit(key) }
	setString := func(dst *string, key, v string) {
		if free(key) && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setList := func(dst *[]string, key string, v []string) {
		if free(key) && len(v) > 0 {
			*dst = append([]string{}, v...)
		}
	}
	setBool := func(dst *bool, key string, v *bool) {
		if free(key) && v != nil {
			*dst = *v
		}
	}

	setString(&cfg.Keyword, KeyKeyword, fc.Keyword)
	if fc.Count != nil && free(KeyCount) {
		cfg.Count = *fc.Count
	}
	setString(&cfg.Language, KeyLanguage, fc.Language)
	setString(&cfg.OutputPath, KeyOutput, fc.Output)
	setString(&cfg.OutputFormat, KeyFormat, fc.Format)
	setBool(&cfg.Verbose, KeyVerbose, fc.Verbose)

	setString(&cfg.Provider, KeyProvider, fc.Search.Provider)
	setList(&cfg.MetaProviders, KeyMetaProviders, fc.Search.Providers)
	setString(&cfg.SearchFile, KeySearchFile, fc.Search.File)
	setString(&cfg.UserAgent, KeyUserAgent, fc.Search.UA)
	if fc.Search.PerDomain > 0 && free(KeyPerDomain) {
		cfg.PerDomainCap = fc.Search.PerDomain
	}
	setString(&cfg.SearxURL, KeySearxURL, fc.Searx.URL)
	setString(&cfg.SearxKey, KeySearxKey, fc.Searx.Key)
	setString(&cfg.GoogleAPIKey, KeyGoogleKey, fc.Google.Key)
	setString(&cfg.GoogleCX, KeyGoogleCX, fc.Google.CX)
	setString(&cfg.RSSURLTemplate, KeyRSSURL, fc.RSS.URL)

	if fc.Fetch.Timeout != "" && free(KeyTimeout) {
		d, err := time.ParseDuration(fc.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("config: fetch.timeout: %w", err)
		}
		cfg.Timeout = d
	}
	setBool(&cfg.SSLVerify, KeySSLVerify, fc.Fetch.SSLVerify)
	if fc.Fetch.Concurrency > 0 && free(KeyConcurrency) {
		cfg.Concurrency = fc.Fetch.Concurrency
	}
	if fc.Fetch.MaxBodyBytes > 0 && free(KeyMaxBodyBytes) {
		cfg.MaxBodyBytes = fc.Fetch.MaxBodyBytes
	}

	setBool(&cfg.Robots, KeyRobots, fc.Fetch.Robots)

	if fc.Filter.MinCJK != nil && free(KeyMinCJK) {
		cfg.MinCJK = *fc.Filter.MinCJK
	}
	setList(&cfg.RejectPrefixes, KeyRejectPrefix, fc.Filter.RejectPrefixes)
	setList(&cfg.DomainAllowlist, KeyDomainsAllow, fc.Domains.Allow)
	setList(&cfg.DomainDenylist, KeyDomainsDeny, fc.Domains.Deny)

	setString(&cfg.CacheDir, KeyCacheDir, fc.Cache.Dir)
	if fc.Cache.MaxAge != "" && free(KeyCacheMaxAge) {
		d, err := time.ParseDuration(fc.Cache.MaxAge)
		if err != nil {
			return fmt.Errorf("config: cache.maxAge: %w", err)
		}
		cfg.CacheMaxAge = d
	}
	setBool(&cfg.CacheClear, KeyCacheClear, fc.Cache.Clear)
	setBool(&cfg.CacheStrictPerms, KeyCacheStrictPerms, fc.Cache.StrictPerms)
	setBool(&cfg.BypassCache, KeyCacheBypass, fc.Cache.Bypass)
	if fc.Cache.MaxBytes > 0 && free(KeyCacheMaxBytes) {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if fc.Cache.MaxEntries > 0 && free(KeyCacheMaxEntries) {
		cfg.CacheMaxEntries = fc.Cache.MaxEntries
	}
	setString(&cfg.MetricsAddr, KeyMetricsAddr, fc.Metrics.Addr)
	return nil
}

// ValidateConfig checks the settings New relies on.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Keyword) == "" {
		return errors.New("config: keyword is required")
	}
	if cfg.Count < 0 {
		return errors.New("config: count must not be negative")
	}
	if cfg.Language != "" {
		if _, err := language.Parse(cfg.Language); err != nil {
			return fmt.Errorf("config: language %q: %w", cfg.Language, err)
		}
	}
	if err := validateProvider(cfg, cfg.Provider, true); err != nil {
		return err
	}
	if cfg.Timeout < 0 || cfg.Concurrency < 0 || cfg.MaxBodyBytes < 0 || cfg.MinCJK < 0 || cfg.PerDomainCap < 0 ||
		cfg.CacheMaxAge < 0 || cfg.CacheMaxBytes < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	switch cfg.OutputFormat {
	case "", FormatJSON, FormatText:
	case FormatDir:
		if cfg.OutputPath == "" || cfg.OutputPath == "-" {
			return errors.New("config: dir output needs a directory path")
		}
	default:
		return fmt.Errorf("config: unknown output format %q", cfg.OutputFormat)
	}
	return nil
}

func validateProvider(cfg Config, name string, allowMeta bool) error {
	switch name {
	case ProviderSearxNG:
		if strings.TrimSpace(cfg.SearxURL) == "" {
			return errors.New("config: searx.url is required for the searxng provider (or set SEARX_URL)")
		}
	case ProviderGoogle:
		if cfg.GoogleAPIKey == "" || cfg.GoogleCX == "" {
			return errors.New("config: google.key and google.cx are required for the google provider")
		}
	case ProviderRSS:
		if !strings.Contains(cfg.RSSURLTemplate, "{query}") {
			return errors.New("config: rss.url must contain a {query} placeholder")
		}
	case ProviderFile:
		if strings.TrimSpace(cfg.SearchFile) == "" {
			return errors.New("config: search.file is required for the file provider")
		}
	case ProviderDuckDuckGo:
	case ProviderMeta:
		if !allowMeta {
			return errors.New("config: meta providers cannot nest")
		}
		if len(cfg.MetaProviders) == 0 {
			return errors.New("config: meta.providers must list at least one provider")
		}
		for _, p := range cfg.MetaProviders {
			if err := validateProvider(cfg, p, false); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("config: unknown provider %q", name)
	}
	return nil
}
