package app

import (
	"fmt"
	"net/http"

	"github.com/hyperifyio/goscrape/internal/search"
)

// newProvider builds the configured search provider. Meta fans out to
// cfg.MetaProviders in the listed order.
func newProvider(cfg Config, hc *http.Client) (search.Provider, error) {
	if cfg.Provider == ProviderMeta {
		providers := make([]search.Provider, 0, len(cfg.MetaProviders))
		for _, name := range cfg.MetaProviders {
			p, err := newSingleProvider(cfg, name, hc)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
		return search.NewMeta(providers...), nil
	}
	return newSingleProvider(cfg, cfg.Provider, hc)
}

func newSingleProvider(cfg Config, name string, hc *http.Client) (search.Provider, error) {
	switch name {
	case ProviderSearxNG:
		return &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, HTTPClient: hc, UserAgent: cfg.UserAgent}, nil
	case ProviderGoogle:
		return &search.Google{APIKey: cfg.GoogleAPIKey, CX: cfg.GoogleCX, HTTPClient: hc, UserAgent: cfg.UserAgent}, nil
	case ProviderDuckDuckGo:
		return &search.DuckDuckGo{HTTPClient: hc, UserAgent: cfg.UserAgent}, nil
	case ProviderRSS:
		return &search.RSS{URLTemplate: cfg.RSSURLTemplate, HTTPClient: hc, UserAgent: cfg.UserAgent}, nil
	case ProviderFile:
		return &search.FileProvider{Path: cfg.SearchFile}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
