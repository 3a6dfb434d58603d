package edgeevents

import (
	"time"

	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

const (
	DefaultPort         = 443
	DefaultPath         = "/edge-events"
	DefaultDialTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

type Op struct {
	sessionCookie      string
	edgeEventsCookie   string
	path               string
	tls                bool
	insecureSkipVerify bool
	dialTimeout        time.Duration
	writeTimeout       time.Duration
	auditLogger        log.AuditLogger
	testerOpts         []nettest.OpOption
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.path == "" {
		op.path = DefaultPath
	}
	if op.dialTimeout <= 0 {
		op.dialTimeout = DefaultDialTimeout
	}
	if op.writeTimeout <= 0 {
		op.writeTimeout = DefaultWriteTimeout
	}
	if op.auditLogger == nil {
		op.auditLogger = log.NewNopAuditLogger()
	}
}

// WithCookies sets the session cookie from client registration and the
// edge events cookie from site selection. Both are required to open.
func WithCookies(sessionCookie, edgeEventsCookie string) OpOption {
	return func(op *Op) {
		op.sessionCookie = sessionCookie
		op.edgeEventsCookie = edgeEventsCookie
	}
}

// WithPath sets the URL path of the stream endpoint.
func WithPath(path string) OpOption {
	return func(op *Op) {
		op.path = path
	}
}

// WithTLS connects with wss://.
func WithTLS(b bool) OpOption {
	return func(op *Op) {
		op.tls = b
	}
}

func WithInsecureSkipVerify(b bool) OpOption {
	return func(op *Op) {
		op.insecureSkipVerify = b
	}
}

func WithDialTimeout(d time.Duration) OpOption {
	return func(op *Op) {
		op.dialTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) OpOption {
	return func(op *Op) {
		op.writeTimeout = d
	}
}

// WithAuditLogger records every message sent and received.
func WithAuditLogger(l log.AuditLogger) OpOption {
	return func(op *Op) {
		op.auditLogger = l
	}
}

// WithTesterOptions configures the testers run by the Test* operations.
func WithTesterOptions(opts ...nettest.OpOption) OpOption {
	return func(op *Op) {
		op.testerOpts = append(op.testerOpts, opts...)
	}
}
