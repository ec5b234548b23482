package app

import "time"

// Provider names accepted by Config.Provider.
const (
	ProviderSearxNG    = "searxng"
	ProviderGoogle     = "google"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderRSS        = "rss"
	ProviderFile       = "file"
	ProviderMeta       = "meta"
)

// Output formats accepted by Config.OutputFormat.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatDir  = "dir"
)

// Config holds runtime configuration for the application.
type Config struct {
	Keyword string
	Count   int
	// Language is a BCP 47 tag such as "zh-TW"; empty means Chinese.
	Language string

	// Search
	Provider string
	// MetaProviders lists the providers queried when Provider is "meta".
	MetaProviders  []string
	SearxURL       string
	SearxKey       string
	GoogleAPIKey   string
	GoogleCX       string
	RSSURLTemplate string
	SearchFile     string
	UserAgent      string

	// Fetching
	Timeout      time.Duration
	SSLVerify    bool
	Concurrency  int
	MaxBodyBytes int64
	// Robots enables robots.txt checks before each page fetch.
	Robots bool

	// Filtering
	PerDomainCap    int
	MinCJK          int
	RejectPrefixes  []string
	DomainAllowlist []string
	DomainDenylist  []string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxBytes    int64
	CacheMaxEntries  int
	BypassCache      bool

	// Output
	OutputPath   string
	OutputFormat string

	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		Count:          3,
		Language:       "zh",
		Provider:       ProviderDuckDuckGo,
		UserAgent:      "goscrape/" + BuildVersion + " (+https://github.com/hyperifyio/goscrape)",
		Timeout:        10 * time.Second,
		SSLVerify:      true,
		MinCJK:         30,
		RejectPrefixes: []string{"%PDF-1.5%"},
		OutputPath:     "-",
		OutputFormat:   FormatJSON,
	}
}
