// Package util holds small helpers shared by the HTTP and websocket clients.
package util

import (
	"fmt"
	"net/http"
	"net/url"
)

// ProxyFunc returns the proxy selector for raw. An empty raw defers to
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
func ProxyFunc(raw string) (func(*http.Request) (*url.URL, error), error) {
	if raw == "" {
		return http.ProxyFromEnvironment, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("proxy %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q: missing host", raw)
	}
	return http.ProxyURL(u), nil
}
