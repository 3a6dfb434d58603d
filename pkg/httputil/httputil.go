// Package httputil builds request URLs for discovery, HTTP probes and edge event streams.
package httputil

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// CreateURL joins scheme, endpoint and path.
// An empty scheme defaults to "http"; a scheme already present on the
// endpoint is replaced; an endpoint of the form ":port" targets localhost.
func CreateURL(scheme string, endpoint string, path string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("empty endpoint")
	}
	if strings.HasPrefix(endpoint, ":") {
		endpoint = "localhost" + endpoint
	}
	if scheme == "" {
		scheme = "http"
	}

	if i := strings.Index(endpoint, "://"); i >= 0 {
		endpoint = endpoint[i+3:]
	}
	u, err := url.Parse(scheme + "://" + endpoint)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("invalid endpoint " + endpoint)
	}

	return scheme + "://" + u.Host + path, nil
}

// WebSocketURL returns the ws:// (or wss:// with tls) URL for host, port and path.
func WebSocketURL(host string, port int, path string, tls bool) (string, error) {
	scheme := "ws"
	if tls {
		scheme = "wss"
	}
	return CreateURL(scheme, net.JoinHostPort(host, strconv.Itoa(port)), path)
}
