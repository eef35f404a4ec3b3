// Package hostutil normalizes API base URLs.
package hostutil

import (
	"net/url"
	"strings"
)

// Normalize turns a bare host into a base URL and strips trailing
// slashes. Loopback hosts default to http, everything else to https.
func Normalize(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if IsLocalhost(host) {
		return "http://" + host
	}
	return "https://" + host
}

// Host returns the host[:port] of a base URL, used to key per-host state.
// It returns the input unchanged when it cannot be parsed.
func Host(baseURL string) string {
	u, err := url.Parse(Normalize(baseURL))
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

// IsLocalhost reports whether host (optionally with a port) is localhost,
// a .localhost subdomain, 127.0.0.1 or [::1].
func IsLocalhost(host string) bool {
	name := host
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		if !strings.HasPrefix(host, "[") || strings.HasPrefix(host, "[::1]:") {
			name = host[:idx]
		}
	}
	switch {
	case name == "localhost", strings.HasSuffix(name, ".localhost"):
		return true
	case name == "127.0.0.1", name == "[::1]":
		return true
	}
	return false
}

// IsSecure reports whether requests to baseURL may carry credentials:
// https anywhere, or plain http to a loopback host.
func IsSecure(baseURL string) bool {
	u, err := url.Parse(Normalize(baseURL))
	if err != nil {
		return false
	}
	return u.Scheme == "https" || (u.Scheme == "http" && IsLocalhost(u.Host))
}
