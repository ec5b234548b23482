package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DomainPolicy filters candidate URLs by host. Patterns are globs over the
// host name ("*.example.com", "docs.?.org"); a bare domain also matches its
// subdomains. Deny takes precedence over Allow, and an empty Allow list
// permits every host that is not denied.
type DomainPolicy struct {
	allow []glob.Glob
	deny  []glob.Glob
}

// NewDomainPolicy compiles allow and deny patterns.
func NewDomainPolicy(allow, deny []string) (*DomainPolicy, error) {
	a, err := compileHostPatterns(allow)
	if err != nil {
		return nil, fmt.Errorf("allow: %w", err)
	}
	d, err := compileHostPatterns(deny)
	if err != nil {
		return nil, fmt.Errorf("deny: %w", err)
	}
	return &DomainPolicy{allow: a, deny: d}, nil
}

func compileHostPatterns(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		variants := []string{p}
		if !strings.HasPrefix(p, "*") {
			variants = append(variants, "*."+p)
		}
		for _, v := range variants {
			g, err := glob.Compile(v, '.')
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p, err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}

// Empty reports whether the policy has no patterns at all.
func (p *DomainPolicy) Empty() bool {
	return p == nil || (len(p.allow) == 0 && len(p.deny) == 0)
}

// Allowed reports whether rawURL may be fetched. Unparseable URLs pass
// through so the fetcher can reject them with its own reason.
func (p *DomainPolicy) Allowed(rawURL string) bool {
	if p.Empty() {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, g := range p.deny {
		if g.Match(host) {
			return false
		}
	}
	if len(p.allow) == 0 {
		return true
	}
	for _, g := range p.allow {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Filter returns the results whose URL the policy allows, in order.
func (p *DomainPolicy) Filter(results []Result) []Result {
	if p.Empty() {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if p.Allowed(r.URL) {
			out = append(out, r)
		}
	}
	return out
}

// CapPerDomain keeps at most perDomain results per host, preserving order.
// A non-positive perDomain returns results unchanged.
func CapPerDomain(results []Result, perDomain int) []Result {
	if perDomain <= 0 {
		return results
	}
	counts := map[string]int{}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		host := r.URL
		if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
			host = strings.ToLower(u.Hostname())
		}
		if counts[host] >= perDomain {
			continue
		}
		counts[host]++
		out = append(out, r)
	}
	return out
}
