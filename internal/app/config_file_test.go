package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	y := filepath.Join(dir, "goscrape.yaml")
	writeFile(t, y, `keyword: 電磁學
count: 5
language: zh-TW
search:
  provider: searxng
searx:
  url: http://localhost:8888
fetch:
  timeout: 3s
  sslVerify: false
cache:
  dir: /tmp/c
  maxAge: 24h
domains:
  deny: [pinterest.com]
`)
	fc, err := LoadConfigFile(y)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if fc.Keyword != "電磁學" || fc.Count == nil || *fc.Count != 5 || fc.Searx.URL != "http://localhost:8888" {
		t.Fatalf("unexpected yaml config: %+v", fc)
	}

	j := filepath.Join(dir, "goscrape.json")
	writeFile(t, j, `{"keyword":"k","search":{"provider":"file","file":"results.json"},"filter":{"minCJK":10}}`)
	fc, err = LoadConfigFile(j)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if fc.Search.Provider != "file" || fc.Filter.MinCJK == nil || *fc.Filter.MinCJK != 10 {
		t.Fatalf("unexpected json config: %+v", fc)
	}

	bad := filepath.Join(dir, "bad.conf")
	writeFile(t, bad, "{ not: [valid")
	if _, err := LoadConfigFile(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfig_ExplicitSettingsWin(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, p, `keyword: from-file
count: 7
search:
  provider: searxng
searx:
  url: http://file-searx
fetch:
  timeout: 3s
  sslVerify: false
filter:
  minCJK: 0
cache:
  maxAge: 1h
`)
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Keyword = "from-flag"
	explicit := map[string]bool{KeyKeyword: true}
	if err := ApplyFileConfig(&cfg, fc, func(k string) bool { return explicit[k] }); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Keyword != "from-flag" {
		t.Fatalf("explicit keyword overridden: %q", cfg.Keyword)
	}
	if cfg.Count != 7 || cfg.Provider != ProviderSearxNG || cfg.SearxURL != "http://file-searx" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Timeout != 3*time.Second || cfg.SSLVerify || cfg.CacheMaxAge != time.Hour {
		t.Fatalf("fetch/cache values not applied: %+v", cfg)
	}
	if cfg.MinCJK != 0 {
		t.Fatalf("explicit zero minCJK not applied: %d", cfg.MinCJK)
	}
}

func TestApplyFileConfig_BadDuration(t *testing.T) {
	var fc FileConfig
	fc.Cache.MaxAge = "soon"
	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err == nil || !strings.Contains(err.Error(), "cache.maxAge") {
		t.Fatalf("expected cache.maxAge error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	base := DefaultConfig()
	base.Keyword = "k"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(*Config) {}, ""},
		{"missing keyword", func(c *Config) { c.Keyword = " " }, "keyword"},
		{"negative count", func(c *Config) { c.Count = -1 }, "count"},
		{"bad language", func(c *Config) { c.Language = "not a tag!" }, "language"},
		{"unknown provider", func(c *Config) { c.Provider = "bing" }, "unknown provider"},
		{"searxng without url", func(c *Config) { c.Provider = ProviderSearxNG }, "searx.url"},
		{"google without cx", func(c *Config) { c.Provider = ProviderGoogle; c.GoogleAPIKey = "k" }, "google"},
		{"rss without placeholder", func(c *Config) { c.Provider = ProviderRSS; c.RSSURLTemplate = "http://x/rss" }, "{query}"},
		{"file without path", func(c *Config) { c.Provider = ProviderFile }, "search.file"},
		{"meta empty", func(c *Config) { c.Provider = ProviderMeta }, "meta.providers"},
		{"meta nested", func(c *Config) { c.Provider = ProviderMeta; c.MetaProviders = []string{ProviderMeta} }, "nest"},
		{"meta ok", func(c *Config) {
			c.Provider = ProviderMeta
			c.MetaProviders = []string{ProviderDuckDuckGo, ProviderFile}
			c.SearchFile = "r.json"
		}, ""},
		{"negative limit", func(c *Config) { c.Concurrency = -2 }, "negative"},
		{"unknown format", func(c *Config) { c.OutputFormat = "xml" }, "format"},
		{"dir to stdout", func(c *Config) { c.OutputFormat = FormatDir }, "dir output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyFileConfig_RobotsAndPerDomain(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, p, `search:
  perDomain: 2
fetch:
  robots: true
`)
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, func(key string) bool { return key == KeyPerDomain }); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !cfg.Robots {
		t.Fatal("robots not enabled from file")
	}
	if cfg.PerDomainCap != 0 {
		t.Fatalf("explicit per-domain flag was overridden: %d", cfg.PerDomainCap)
	}
}

func TestApplyFileConfig_FalseBoolsOverrideDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, p, `verbose: false
fetch:
  robots: false
cache:
  bypass: false
`)
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Verbose, cfg.Robots, cfg.BypassCache = true, true, true
	if err := ApplyFileConfig(&cfg, fc, func(key string) bool { return key == KeyVerbose }); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Robots || cfg.BypassCache {
		t.Fatalf("file false values ignored: robots=%v bypass=%v", cfg.Robots, cfg.BypassCache)
	}
	if !cfg.Verbose {
		t.Fatal("explicit verbose flag was overridden by the file")
	}
}
