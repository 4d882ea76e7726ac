package robots

import (
	"net/url"
	"strings"
	"time"
)

// crawlDelayValue unwraps a ruleSet's optional crawl delay to its zero value
// when unset, since Decision carries CrawlDelay as a plain time.Duration.
func crawlDelayValue(rs ruleSet) (delay time.Duration) {
	if d := rs.CrawlDelay(); d != nil {
		delay = *d
	}
	return delay
}

// Decide evaluates a ruleSet against a request URL using the standard
// longest-match rule: among all allow/disallow rules whose pattern matches
// the path (see matchesPattern), the longest pattern wins; ties favor Allow.
// A path that matches no rule at all is allowed.
func Decide(rs ruleSet, u url.URL) Decision {
	delay := crawlDelayValue(rs)
	if !rs.hasGroups {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet, CrawlDelay: delay}
	}
	if !rs.matchedGroup {
		return Decision{Url: u, Allowed: true, Reason: UserAgentNotMatched, CrawlDelay: delay}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	bestLen := -1
	allowed := true
	matched := false

	for _, rule := range rs.allowRules {
		if matchesPattern(path, rule.prefix) && len(rule.prefix) > bestLen {
			bestLen = len(rule.prefix)
			allowed = true
			matched = true
		}
	}
	for _, rule := range rs.disallowRules {
		if matchesPattern(path, rule.prefix) && len(rule.prefix) > bestLen {
			bestLen = len(rule.prefix)
			allowed = false
			matched = true
		}
	}

	if !matched {
		return Decision{Url: u, Allowed: true, Reason: NoMatchingRules, CrawlDelay: delay}
	}
	if allowed {
		return Decision{Url: u, Allowed: true, Reason: AllowedByRobots, CrawlDelay: delay}
	}
	return Decision{Url: u, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: delay}
}

// matchesPattern reports whether path matches a robots.txt rule pattern.
// A pattern without wildcards matches as a prefix; "*" matches any run of
// characters, and a trailing "$" anchors the pattern to the end of the path.
func matchesPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	anchored := strings.HasSuffix(pattern, "$")
	parts := strings.Split(strings.TrimSuffix(pattern, "$"), "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	for i := 1; i < len(parts); i++ {
		if anchored && i == len(parts)-1 {
			return strings.HasSuffix(rest, parts[i])
		}
		idx := strings.Index(rest, parts[i])
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(parts[i]):]
	}
	return !anchored || rest == ""
}
