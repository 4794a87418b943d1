package frontier

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
)

// Normalize returns the dedup key of rawURL: lowercased scheme and host,
// default port removed, empty path replaced by "/", fragment dropped. The
// query string is preserved as is, since different queries address
// different resources (Drive downloads differ only by their id parameter).
func Normalize(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
		parsed.RawPath = ""
	}

	return parsed.String(), nil
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" || defaultPorts[u.Scheme] == port {
		return hostname
	}
	return hostname + ":" + port
}
