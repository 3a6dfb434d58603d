// Package v1 provides the edgeprobe v1 clients: the discovery client used to
// fetch candidate edge sites and the status client for a running monitor.
package v1

import (
	"net/http"
	"time"
)

const DefaultTimeout = 10 * time.Second

type Op struct {
	httpClient         *http.Client
	timeout            time.Duration
	cacheTTL           time.Duration
	insecureSkipVerify bool
	acceptYAML         bool
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}

	if op.timeout <= 0 {
		op.timeout = DefaultTimeout
	}
	if op.httpClient == nil {
		op.httpClient = createDefaultHTTPClient(op.timeout, op.insecureSkipVerify)
	}
	return nil
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(cli *http.Client) OpOption {
	return func(op *Op) {
		op.httpClient = cli
	}
}

func WithTimeout(d time.Duration) OpOption {
	return func(op *Op) {
		op.timeout = d
	}
}

// WithCacheTTL caches app instance lists per request for the duration.
// Zero disables caching.
func WithCacheTTL(d time.Duration) OpOption {
	return func(op *Op) {
		op.cacheTTL = d
	}
}

// WithInsecureSkipVerify disables server certificate verification.
func WithInsecureSkipVerify(b bool) OpOption {
	return func(op *Op) {
		op.insecureSkipVerify = b
	}
}

// WithAcceptYAML asks the status server for YAML instead of JSON.
func WithAcceptYAML() OpOption {
	return func(op *Op) {
		op.acceptYAML = true
	}
}
