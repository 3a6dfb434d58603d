package nettest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/leptonai/edgeprobe/pkg/httputil"
)

// ErrProbeFailed marks an expected probe failure (refused, timed out,
// unreachable, non-200). Such failures are recorded as FailedLatency and
// never surface from a batch run.
var ErrProbeFailed = errors.New("probe failed")

// Prober measures the latency of one site once.
// The context carries the probe timeout.
type Prober interface {
	Probe(ctx context.Context, site *Site) (time.Duration, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, site *Site) (time.Duration, error)

func (f ProberFunc) Probe(ctx context.Context, site *Site) (time.Duration, error) {
	return f(ctx, site)
}

var _ Prober = &defaultProber{}

type defaultProber struct {
	privilegedPing bool

	// test seams
	pingFunc func(ctx context.Context, site *Site, privileged bool) (time.Duration, error)
}

// NewProber returns the prober dispatching on the site kind:
// ICMP echo for PING, HTTP GET for CONNECT with an L7 path,
// TCP (or TLS) connect otherwise.
func NewProber(privilegedPing bool) Prober {
	return &defaultProber{
		privilegedPing: privilegedPing,
		pingFunc:       pingOnce,
	}
}

func (p *defaultProber) Probe(ctx context.Context, site *Site) (time.Duration, error) {
	switch site.Kind {
	case ProbeKindPing:
		return p.pingFunc(ctx, site, p.privilegedPing)
	case ProbeKindConnect:
		if site.L7Path != "" {
			return probeHTTP(ctx, site)
		}
		return probeConnect(ctx, site)
	default:
		return 0, fmt.Errorf("unsupported probe kind %q", site.Kind)
	}
}

func newDialer(site *Site) *net.Dialer {
	d := &net.Dialer{}
	if site.LocalAddr.IsValid() {
		d.LocalAddr = &net.TCPAddr{IP: site.LocalAddr.AsSlice()}
	}
	return d
}

// probeConnect measures the time until the connection (and TLS handshake,
// if enabled) is established, then closes it.
func probeConnect(ctx context.Context, site *Site) (time.Duration, error) {
	if site.Host == "" || site.Port <= 0 {
		return 0, fmt.Errorf("site %q has no host/port to connect to", site.Name())
	}
	addr := net.JoinHostPort(site.Host, strconv.Itoa(site.Port))

	d := newDialer(site)
	var (
		conn net.Conn
		err  error
	)
	start := time.Now()
	if site.TLS {
		td := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: site.Host}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	elapsed := time.Since(start)
	if err != nil {
		return 0, fmt.Errorf("%w: connect %s: %v", ErrProbeFailed, addr, err)
	}
	_ = conn.Close()

	return elapsed, nil
}

// probeHTTP issues one GET over a fresh connection; only 200 counts as success.
func probeHTTP(ctx context.Context, site *Site) (time.Duration, error) {
	scheme := "http"
	if site.TLS {
		scheme = "https"
	}
	u, err := httputil.CreateURL(scheme, site.L7Path, "")
	if err != nil {
		return 0, fmt.Errorf("invalid l7 path %q: %w", site.L7Path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid l7 path %q: %w", site.L7Path, err)
	}
	cli := &http.Client{
		Transport: &http.Transport{
			DialContext:       newDialer(site).DialContext,
			DisableKeepAlives: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	start := time.Now()
	resp, err := cli.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: GET %s: %v", ErrProbeFailed, u, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: GET %s: unexpected status %d", ErrProbeFailed, u, resp.StatusCode)
	}
	return elapsed, nil
}
