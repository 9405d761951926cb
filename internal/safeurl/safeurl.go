package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes for configured upstreams.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Redact returns u without userinfo and with query values masked, for logging
// playlist URLs that often embed provider credentials.
func Redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return u
	}
	if parsed.User != nil {
		parsed.User = url.User("xxx")
	}
	if parsed.RawQuery != "" {
		q := parsed.Query()
		for k := range q {
			q.Set(k, "xxx")
		}
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}
