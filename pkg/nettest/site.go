package nettest

import (
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
)

// ProbeKind selects how a site is measured.
type ProbeKind string

const (
	// ProbeKindConnect opens and closes a transport connection,
	// or issues one HTTP GET when the site has an L7 path.
	ProbeKindConnect ProbeKind = "CONNECT"
	// ProbeKindPing sends one ICMP echo request.
	ProbeKindPing ProbeKind = "PING"
)

const (
	// DefaultSampleCapacity is the number of samples a site keeps.
	DefaultSampleCapacity = 3

	// FailedLatency is recorded as the last latency of a failed probe.
	FailedLatency = -1.0
)

// Site is one candidate endpoint under test.
// Its samples live in a ring buffer that only the probe testing
// the site writes to; the mutex makes snapshots safe for other readers.
type Site struct {
	Host   string
	Port   int
	L7Path string
	Kind   ProbeKind
	TLS    bool

	// LocalAddr, when valid, is the local address probes originate from.
	LocalAddr netip.Addr

	AppInst          *apiv1.AppInstance
	CloudletName     string
	CloudletLocation apiv1.Loc

	mu                  sync.RWMutex
	samples             []apiv1.Sample
	size                int
	idx                 int
	mean                float64
	stddev              float64
	lastLatency         float64
	consecutiveFailures int
}

type SiteOption func(*Site)

// WithSampleCapacity sets the ring buffer size; non-positive values keep the default.
func WithSampleCapacity(n int) SiteOption {
	return func(s *Site) {
		if n > 0 {
			s.samples = make([]apiv1.Sample, n)
		}
	}
}

func WithLocalAddr(addr netip.Addr) SiteOption {
	return func(s *Site) {
		s.LocalAddr = addr
	}
}

func WithTLS(tls bool) SiteOption {
	return func(s *Site) {
		s.TLS = tls
	}
}

// WithCandidate attaches the app instance and cloudlet the site was built from.
func WithCandidate(inst *apiv1.AppInstance, cloudletName string, loc apiv1.Loc) SiteOption {
	return func(s *Site) {
		s.AppInst = inst
		s.CloudletName = cloudletName
		s.CloudletLocation = loc
	}
}

// NewSite creates a site probed at the transport level.
func NewSite(host string, port int, kind ProbeKind, opts ...SiteOption) *Site {
	s := &Site{
		Host: host,
		Port: port,
		Kind: kind,
	}
	s.init(opts)
	return s
}

// NewL7Site creates a site probed with an HTTP GET against l7Path ("host:port").
func NewL7Site(l7Path string, opts ...SiteOption) *Site {
	s := &Site{
		L7Path: l7Path,
		Kind:   ProbeKindConnect,
	}
	if host, port, err := net.SplitHostPort(l7Path); err == nil {
		s.Host = host
		s.Port, _ = strconv.Atoi(port)
	}
	s.init(opts)
	return s
}

func (s *Site) init(opts []SiteOption) {
	for _, opt := range opts {
		opt(s)
	}
	if len(s.samples) == 0 {
		s.samples = make([]apiv1.Sample, DefaultSampleCapacity)
	}
}

// Name is the L7 path if set, otherwise "host:port" (or just host for ping).
func (s *Site) Name() string {
	if s.L7Path != "" {
		return s.L7Path
	}
	if s.Kind == ProbeKindPing || s.Port == 0 {
		return s.Host
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Capacity is the maximum number of samples kept.
func (s *Site) Capacity() int {
	return len(s.samples)
}

// AddSample records a successful measurement in milliseconds,
// evicting the oldest sample once the buffer is full.
func (s *Site) AddSample(value float64, capturedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.idx] = apiv1.Sample{Value: value, Timestamp: capturedAt}
	s.idx = (s.idx + 1) % len(s.samples)
	if s.size < len(s.samples) {
		s.size++
	}
	s.lastLatency = value
	s.consecutiveFailures = 0
	s.recalculate()
}

// recordFailure leaves the samples untouched.
func (s *Site) recordFailure() {
	s.mu.Lock()
	s.lastLatency = FailedLatency
	s.consecutiveFailures++
	s.mu.Unlock()
}

// recalculate must be called with mu held.
func (s *Site) recalculate() {
	if s.size == 0 {
		s.mean, s.stddev = 0, 0
		return
	}

	vals := make([]float64, s.size)
	for i := 0; i < s.size; i++ {
		vals[i] = s.samples[i].Value
	}
	if s.size == 1 {
		s.mean, s.stddev = vals[0], 0
		return
	}
	// unbiased, divides by size-1
	s.mean, s.stddev = stat.MeanStdDev(vals, nil)
}

// Samples returns a copy of the stored samples, oldest first.
func (s *Site) Samples() []apiv1.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]apiv1.Sample, 0, s.size)
	if s.size < len(s.samples) {
		return append(out, s.samples[:s.size]...)
	}
	out = append(out, s.samples[s.idx:]...)
	return append(out, s.samples[:s.idx]...)
}

// Stats is a consistent snapshot of a site's statistics.
type Stats struct {
	Size                int
	Mean                float64
	StdDev              float64
	LastLatency         float64
	ConsecutiveFailures int
}

func (s *Site) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Size:                s.size,
		Mean:                s.mean,
		StdDev:              s.stddev,
		LastLatency:         s.lastLatency,
		ConsecutiveFailures: s.consecutiveFailures,
	}
}

func (s *Site) Size() int {
	return s.Stats().Size
}

func (s *Site) Mean() float64 {
	return s.Stats().Mean
}

func (s *Site) StdDev() float64 {
	return s.Stats().StdDev
}

func (s *Site) LastLatency() float64 {
	return s.Stats().LastLatency
}
