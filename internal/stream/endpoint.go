package stream

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultWorkspace is used when no workspace id is configured
const DefaultWorkspace = "default"

// EndpointURL derives the websocket endpoint from the page origin.
// https origins map to wss, http to ws.
func EndpointURL(origin, path, workspaceID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	if net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("invalid host %q: %w", host, err)
		}
		host = ascii
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	u.RawPath = ""
	u.User = nil
	u.Fragment = ""

	if workspaceID == "" {
		workspaceID = DefaultWorkspace
	}
	q := url.Values{}
	q.Set("workspace_id", workspaceID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// NATSSubject is the subject a workspace's events are published on
func NATSSubject(workspaceID string) string {
	if workspaceID == "" {
		workspaceID = DefaultWorkspace
	}
	return "research.events." + workspaceID
}
