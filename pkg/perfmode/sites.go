package perfmode

import (
	"fmt"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

// BuildSites creates one site per app instance per cloudlet.
//
// Without ping support, every instance needs a TCP port (matching testPort
// when set) or the whole build fails. With ping support, a testPort limits
// the usable ports to those in range; otherwise TCP is preferred and UDP
// falls back to PING. Instances without a usable port are skipped.
func (s *Selector) BuildSites(candidates *apiv1.AppInstListReply, testPort int) ([]*nettest.Site, error) {
	if candidates == nil || len(candidates.Cloudlets) == 0 {
		return nil, fmt.Errorf("%w: empty candidate list", ErrCannotSelectEdgeSite)
	}

	var sites []*nettest.Site
	for _, cl := range candidates.Cloudlets {
		for i := range cl.AppInstances {
			inst := &cl.AppInstances[i]

			site, err := s.buildSite(cl, inst, testPort)
			if err != nil {
				return nil, err
			}
			if site != nil {
				sites = append(sites, site)
			}
		}
	}

	if len(sites) == 0 {
		return nil, fmt.Errorf("%w: no usable ports on any candidate", ErrCannotSelectEdgeSite)
	}
	return sites, nil
}

func (s *Selector) buildSite(cl apiv1.CloudletLocation, inst *apiv1.AppInstance, testPort int) (*nettest.Site, error) {
	ports := inst.Ports
	if testPort > 0 {
		ports = matchingPorts(ports, testPort)
	}

	if !s.canPing {
		port, ok := firstPort(ports, apiv1.LProtoTCP, apiv1.LProtoHTTP)
		if !ok {
			return nil, fmt.Errorf("%w: app instance %q on cloudlet %q has no TCP port and this platform cannot ping",
				ErrCannotSelectEdgeSite, inst.Fqdn, cl.CloudletName)
		}
		return s.newSite(cl, inst, port, testPort), nil
	}

	if port, ok := firstPort(ports, apiv1.LProtoTCP, apiv1.LProtoHTTP); ok {
		return s.newSite(cl, inst, port, testPort), nil
	}
	if port, ok := firstPort(ports, apiv1.LProtoUDP); ok {
		log.Logger.Warnw("no TCP port, falling back to ping which many networks block",
			"fqdn", inst.Fqdn, "cloudlet", cl.CloudletName, "udp_port", port.PublicPort)
		return nettest.NewSite(port.Host(inst.Fqdn), 0, nettest.ProbeKindPing, s.siteOpts(cl, inst)...), nil
	}

	log.Logger.Debugw("skipping app instance without usable port", "fqdn", inst.Fqdn, "cloudlet", cl.CloudletName, "test_port", testPort)
	return nil, nil
}

// newSite builds a CONNECT site; HTTP ports are probed with an L7 GET.
func (s *Selector) newSite(cl apiv1.CloudletLocation, inst *apiv1.AppInstance, port apiv1.AppPort, testPort int) *nettest.Site {
	p := int(port.PublicPort)
	if testPort > 0 {
		p = testPort
	}
	host := port.Host(inst.Fqdn)

	opts := append(s.siteOpts(cl, inst), nettest.WithTLS(port.TLS))
	if port.Proto == apiv1.LProtoHTTP {
		return nettest.NewL7Site(fmt.Sprintf("%s:%d", host, p), opts...)
	}
	return nettest.NewSite(host, p, nettest.ProbeKindConnect, opts...)
}

func (s *Selector) siteOpts(cl apiv1.CloudletLocation, inst *apiv1.AppInstance) []nettest.SiteOption {
	return []nettest.SiteOption{
		nettest.WithCandidate(inst, cl.CloudletName, cl.GpsLocation),
		nettest.WithLocalAddr(s.localAddr),
		nettest.WithSampleCapacity(s.sampleCapacity),
	}
}

func matchingPorts(ports []apiv1.AppPort, testPort int) []apiv1.AppPort {
	var out []apiv1.AppPort
	for _, p := range ports {
		if p.InRange(testPort) {
			out = append(out, p)
		}
	}
	return out
}

func firstPort(ports []apiv1.AppPort, protos ...apiv1.LProto) (apiv1.AppPort, bool) {
	for _, p := range ports {
		for _, proto := range protos {
			if p.Proto == proto {
				return p, true
			}
		}
	}
	return apiv1.AppPort{}, false
}
