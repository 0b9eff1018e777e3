// Package pagekey normalizes page URLs into the identity notes are grouped
// under. The engine never computes keys itself; this is the page-identity
// resolver the presentation layer calls at its boundary.
//
// A page key is the origin: lowercased scheme and host, with the port kept
// only when it is not the scheme default. Path, query string and fragment
// are dropped so notes stay attached to the site rather than to one
// specific view of it.
package pagekey

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize turns a raw page URL into its origin key.
func Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("page url must not be empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unparsable page url %q: %w", rawURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported page url scheme %q", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("page url %q has no host", rawURL)
	}
	port := parsed.Port()
	if port == defaultPort(scheme) {
		port = ""
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, nil
	}
	return scheme + "://" + host, nil
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
