// internal/utils/domain.go
package utils

import (
	"net/url"
	"strings"
)

// NormalizeDomain reduces a URL or host string to a bare lower-case host: scheme,
// userinfo, path and port are dropped and IPv6 brackets removed. An empty result
// means the input had no usable host.
func NormalizeDomain(raw string) string {
	domain := strings.TrimSpace(raw)
	if domain == "" {
		return ""
	}

	if !strings.Contains(domain, "://") {
		if i := strings.IndexAny(domain, "/?#"); i >= 0 {
			domain = domain[:i]
		}
		domain = "//" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return ""
	}

	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}
