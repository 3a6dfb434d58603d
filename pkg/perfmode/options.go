package perfmode

import (
	"context"
	"net/netip"
	"time"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

// Discoverer returns candidate cloudlets, e.g. a *clientv1.Client.
type Discoverer interface {
	GetAppInstList(ctx context.Context, req *apiv1.AppInstListRequest) (*apiv1.AppInstListReply, error)
}

type Op struct {
	discoverer     Discoverer
	canPing        bool
	localAddr      netip.Addr
	sampleCapacity int
	testerOpts     []nettest.OpOption
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}
}

func WithDiscoverer(d Discoverer) OpOption {
	return func(op *Op) {
		op.discoverer = d
	}
}

// WithCanPing declares that this platform can send echo requests.
// Without it only TCP connect probes are used.
func WithCanPing(b bool) OpOption {
	return func(op *Op) {
		op.canPing = b
	}
}

// WithLocalAddr binds every probe to the local address.
func WithLocalAddr(addr netip.Addr) OpOption {
	return func(op *Op) {
		op.localAddr = addr
	}
}

// WithSampleCapacity sets the ring buffer size of every built site.
func WithSampleCapacity(n int) OpOption {
	return func(op *Op) {
		op.sampleCapacity = n
	}
}

func WithTestTimeout(d time.Duration) OpOption {
	return func(op *Op) {
		op.testerOpts = append(op.testerOpts, nettest.WithTestTimeout(d))
	}
}

// WithTesterOptions passes options to the tester of every selection.
func WithTesterOptions(opts ...nettest.OpOption) OpOption {
	return func(op *Op) {
		op.testerOpts = append(op.testerOpts, opts...)
	}
}
