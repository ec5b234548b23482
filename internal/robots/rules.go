// Package robots parses robots.txt files and answers whether a page may be
// fetched by a given user agent.
package robots

import (
	"bufio"
	"strings"

	"github.com/gobwas/glob"
)

// Rules is a parsed robots.txt file.
type Rules struct {
	Groups []Group
}

// Group is one block of User-agent lines and the directives that follow them.
type Group struct {
	Agents   []string
	Allow    []string
	Disallow []string
}

var allowAll = Rules{}

// disallowAll blocks every path for every agent.
var disallowAll = Rules{Groups: []Group{{Agents: []string{"*"}, Disallow: []string{"/"}}}}

// Parse reads robots.txt content. Unknown directives and malformed lines are ignored.
func Parse(text string) Rules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var groups []Group
	var current Group
	flush := func() {
		if len(current.Agents) == 0 {
			current = Group{}
			return
		}
		groups = append(groups, current)
		current = Group{}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			// Consecutive agent lines share one group.
			if len(current.Allow) > 0 || len(current.Disallow) > 0 {
				flush()
			}
			current.Agents = append(current.Agents, strings.ToLower(val))
		case "allow":
			current.Allow = append(current.Allow, val)
		case "disallow":
			current.Disallow = append(current.Disallow, val)
		}
	}
	flush()
	return Rules{Groups: groups}
}

// Allowed reports whether path (with optional query) may be fetched by
// userAgent. The group with the longest agent token contained in userAgent
// applies, "*" being the fallback. Within it the longest matching pattern
// wins and Allow beats Disallow on a tie. No match means allowed.
func (r Rules) Allowed(userAgent, path string) bool {
	g := r.group(userAgent)
	if g == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	best, allowed := -1, true
	consider := func(patterns []string, allow bool) {
		for _, p := range patterns {
			if p == "" || !patternMatches(p, path) {
				continue
			}
			score := specificity(p)
			if score > best || (score == best && allow && !allowed) {
				best, allowed = score, allow
			}
		}
	}
	consider(g.Disallow, false)
	consider(g.Allow, true)
	return allowed
}

func (r Rules) group(userAgent string) *Group {
	ua := strings.ToLower(userAgent)
	var best *Group
	bestScore := -1
	for i := range r.Groups {
		for _, token := range r.Groups[i].Agents {
			score := -1
			switch {
			case token == "*":
				score = 0
			case token != "" && strings.Contains(ua, token):
				score = len(token)
			}
			if score > bestScore {
				best, bestScore = &r.Groups[i], score
			}
		}
	}
	return best
}

// patternMatches anchors a robots pattern at the start of path. '*' matches
// any run of characters and a trailing '$' anchors the end.
func patternMatches(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	expr := strings.Join(parts, "*")
	if !anchored {
		expr += "*"
	}
	g, err := glob.Compile(expr)
	if err != nil {
		return false
	}
	return g.Match(path)
}

func specificity(pattern string) int {
	return len(strings.ReplaceAll(strings.TrimSuffix(pattern, "$"), "*", ""))
}
