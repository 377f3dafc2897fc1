package proxy

import (
	"net/url"
	"strings"
)

// AllowList is the set of hosts the proxy may fetch from. Primary entries
// match the domain and any subdomain; Suffixes are CDN domain suffixes
// matched the same way.
type AllowList struct {
	Primary  []string
	Suffixes []string
}

// Allowed reports whether u is an http(s) URL on an allowed host.
func (a AllowList) Allowed(u *url.URL) bool {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	for _, list := range [][]string{a.Primary, a.Suffixes} {
		for _, d := range list {
			if matchDomain(host, d) {
				return true
			}
		}
	}
	return false
}

func matchDomain(host, domain string) bool {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
