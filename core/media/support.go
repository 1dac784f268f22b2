package media

import (
	"net/url"
	"strings"
)

// SupportChecker accepts URLs whose host is one of, or a subdomain of, a
// configured list of video sites.
type SupportChecker struct {
	hosts map[string]struct{}
}

// NewSupportChecker builds a checker from host names such as "youtube.com".
func NewSupportChecker(hosts []string) *SupportChecker {
	c := &SupportChecker{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		if h = trimHost(h); h != "" {
			c.hosts[h] = struct{}{}
		}
	}
	return c
}

// Supports reports whether rawURL points at a known host.
func (c *SupportChecker) Supports(rawURL string) bool {
	if c == nil {
		return false
	}
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return false
	}
	host := trimHost(u.Hostname())
	for host != "" {
		if _, ok := c.hosts[host]; ok {
			return true
		}
		_, parent, found := strings.Cut(host, ".")
		if !found || !strings.Contains(parent, ".") {
			return false
		}
		host = parent
	}
	return false
}

// NormalizeURL trims rawURL and adds https:// when the scheme is missing.
// It reports false when the result is not an http(s) URL with a host.
func NormalizeURL(rawURL string) (string, bool) {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return "", false
	}
	return u.String(), true
}

// LooksLikeURL is used to route plain messages to the submit command.
func LooksLikeURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return false
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	_, ok := parseHTTPURL(text)
	return ok && strings.Contains(text, "/")
}

func parseHTTPURL(rawURL string) (*url.URL, bool) {
	s := strings.TrimSpace(rawURL)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return nil, false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, false
	}
	if u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return nil, false
	}
	return u, true
}

func trimHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	for _, p := range []string{"www.", "m."} {
		h = strings.TrimPrefix(h, p)
	}
	return h
}
