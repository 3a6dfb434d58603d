// Package perfmode selects the edge site with the best measured latency.
package perfmode

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

// ErrCannotSelectEdgeSite wraps every selection failure, as opposed to
// individual probe failures which never surface.
var ErrCannotSelectEdgeSite = errors.New("cannot select edge site")

const DefaultNumSamples = 5

type Selector struct {
	discoverer     Discoverer
	canPing        bool
	localAddr      netip.Addr
	sampleCapacity int
	testerOpts     []nettest.OpOption
}

func New(opts ...OpOption) *Selector {
	op := &Op{}
	op.applyOpts(opts)

	return &Selector{
		discoverer:     op.discoverer,
		canPing:        op.canPing,
		localAddr:      op.localAddr,
		sampleCapacity: op.sampleCapacity,
		testerOpts:     op.testerOpts,
	}
}

// FindBestSite asks discovery for candidates and selects the best of them.
func (s *Selector) FindBestSite(ctx context.Context, req *apiv1.AppInstListRequest, testPort int, numSamples int) (*apiv1.FindCloudletReply, error) {
	if s.discoverer == nil {
		return nil, fmt.Errorf("%w: no discoverer configured", ErrCannotSelectEdgeSite)
	}

	reply, err := s.discoverer.GetAppInstList(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotSelectEdgeSite, err)
	}
	return s.SelectBestSite(ctx, reply, testPort, numSamples)
}

// SelectBestSite probes every candidate numSamples times and returns the
// top ranked one. A testPort of zero means any port.
func (s *Selector) SelectBestSite(ctx context.Context, candidates *apiv1.AppInstListReply, testPort int, numSamples int) (*apiv1.FindCloudletReply, error) {
	best, _, err := s.Evaluate(ctx, candidates, testPort, numSamples)
	if err != nil {
		return nil, err
	}
	return NewFindCloudletReply(best), nil
}

// Evaluate is SelectBestSite returning the best site and the full ranking.
func (s *Selector) Evaluate(ctx context.Context, candidates *apiv1.AppInstListReply, testPort int, numSamples int) (*nettest.Site, []*nettest.Site, error) {
	if numSamples <= 0 {
		numSamples = DefaultNumSamples
	}

	sites, err := s.BuildSites(candidates, testPort)
	if err != nil {
		return nil, nil, err
	}

	tester := nettest.New(s.testerOpts...)
	tester.Add(sites...)

	ranked, err := tester.RunBatch(ctx, numSamples)
	if err != nil {
		return nil, ranked, fmt.Errorf("%w: %w", ErrCannotSelectEdgeSite, err)
	}
	if len(ranked) == 0 || ranked[0].Size() == 0 {
		return nil, ranked, fmt.Errorf("%w: no site answered any probe", ErrCannotSelectEdgeSite)
	}

	best := ranked[0]
	log.Logger.Infow("selected edge site",
		"site", best.Name(),
		"cloudlet", best.CloudletName,
		"mean_ms", best.Mean(),
		"stddev_ms", best.StdDev(),
		"candidates", len(ranked),
	)
	return best, ranked, nil
}

// NewFindCloudletReply rebuilds a selection result from the site's candidate.
func NewFindCloudletReply(site *nettest.Site) *apiv1.FindCloudletReply {
	reply := &apiv1.FindCloudletReply{
		Status:           apiv1.FindStatusFound,
		CloudletLocation: site.CloudletLocation,
		CloudletName:     site.CloudletName,
	}
	if inst := site.AppInst; inst != nil {
		reply.Fqdn = inst.Fqdn
		reply.AppName = inst.AppName
		reply.EdgeEventsCookie = inst.EdgeEventsCookie
		reply.Ports = append([]apiv1.AppPort(nil), inst.Ports...)
	}
	return reply
}
