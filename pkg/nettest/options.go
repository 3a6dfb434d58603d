package nettest

import "time"

const (
	DefaultTestTimeout = 5 * time.Second
	DefaultInterval    = 5 * time.Second
)

type Op struct {
	prober                 Prober
	privilegedPing         bool
	timeout                time.Duration
	interval               time.Duration
	maxConsecutiveFailures int
	onRoundComplete        func([]*Site)
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.timeout <= 0 {
		op.timeout = DefaultTestTimeout
	}
	if op.interval <= 0 {
		op.interval = DefaultInterval
	}
	if op.prober == nil {
		op.prober = NewProber(op.privilegedPing)
	}
}

// WithProber replaces the built-in prober.
func WithProber(p Prober) OpOption {
	return func(op *Op) {
		op.prober = p
	}
}

// WithPrivilegedPing sends raw ICMP instead of unprivileged UDP echo.
func WithPrivilegedPing(b bool) OpOption {
	return func(op *Op) {
		op.privilegedPing = b
	}
}

// WithTestTimeout bounds every single probe.
func WithTestTimeout(d time.Duration) OpOption {
	return func(op *Op) {
		op.timeout = d
	}
}

// WithInterval sets the continuous mode period.
func WithInterval(d time.Duration) OpOption {
	return func(op *Op) {
		op.interval = d
	}
}

// WithMaxConsecutiveFailures evicts a site from continuous testing once it
// fails n probes in a row. Zero disables eviction.
func WithMaxConsecutiveFailures(n int) OpOption {
	return func(op *Op) {
		op.maxConsecutiveFailures = n
	}
}

// WithOnRoundComplete is called with the ranked sites after every
// continuous round.
func WithOnRoundComplete(f func([]*Site)) OpOption {
	return func(op *Op) {
		op.onRoundComplete = f
	}
}
