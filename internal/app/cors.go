package app

import (
	"net/url"
	"strings"
)

// originRule is one allowed_origins entry: an optional scheme and a host
// pattern. Host patterns are exact ("papers.example"), subdomain wildcards
// ("*.papers.example") or any-port wildcards ("localhost:*").
type originRule struct {
	scheme string
	host   string
}

func parseOriginRule(pattern string) originRule {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	var r originRule
	if scheme, rest, ok := strings.Cut(pattern, "://"); ok {
		r.scheme, pattern = scheme, rest
	}
	r.host = strings.TrimRight(pattern, "/")
	return r
}

func (r originRule) allows(scheme, host string) bool {
	if r.scheme != "" && r.scheme != scheme {
		return false
	}
	return matchOriginHost(r.host, host)
}

// matchOriginHost reports whether host matches the given wildcard pattern.
func matchOriginHost(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}

// originAllower compiles allowed_origins into a cors AllowOriginFunc.
// Origins that do not parse as scheme://host are refused.
func originAllower(patterns []string) func(origin string) bool {
	rules := make([]originRule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, parseOriginRule(p))
	}
	return func(origin string) bool {
		u, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		scheme, host := strings.ToLower(u.Scheme), strings.ToLower(u.Host)
		for _, r := range rules {
			if r.allows(scheme, host) {
				return true
			}
		}
		return false
	}
}
