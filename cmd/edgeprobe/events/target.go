package events

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/log"
)

// target is where the stream connects and what the Test operations measure.
type target struct {
	host string
	port int

	sessionCookie    string
	edgeEventsCookie string

	testHost string
	testPort int
}

// resolveTarget uses the cookies and host given on the command line, and
// otherwise selects the best site to learn them.
func resolveTarget(ctx context.Context, cliContext *cli.Context, cfg *config.Config) (*target, error) {
	t := &target{
		host:             cliContext.String("host"),
		port:             cliContext.Int("port"),
		sessionCookie:    cliContext.String("session-cookie"),
		edgeEventsCookie: cliContext.String("edge-events-cookie"),
	}
	if t.host == "" {
		t.host = cfg.EdgeEvents.Host
	}
	if t.port == 0 {
		t.port = cfg.EdgeEvents.Port
	}

	if t.sessionCookie == "" || t.edgeEventsCookie == "" {
		cands, err := cmdcommon.LoadCandidates(ctx, cliContext, cfg)
		if err != nil {
			return nil, err
		}
		sel, err := cmdcommon.NewSelector(cfg)
		if err != nil {
			return nil, err
		}
		reply, err := sel.SelectBestSite(ctx, cands.Reply, cfg.NetTest.TestPort, cfg.NetTest.NumSamples)
		if err != nil {
			return nil, err
		}
		log.Logger.Infow("selected site for edge events", "fqdn", reply.Fqdn, "cloudlet", reply.CloudletName)

		if t.sessionCookie == "" {
			t.sessionCookie = cands.SessionCookie
		}
		next, ok := t.follow(reply, cfg)
		if !ok {
			return nil, fmt.Errorf("selected site %q has no edge events cookie", reply.Fqdn)
		}
		next.host, next.port = firstNonEmpty(t.host, next.host), firstNonZero(t.port, next.port)
		t = next
	}

	if t.host == "" {
		return nil, ErrNoEdgeEventsEndpoint
	}
	if t.testHost == "" {
		t.testHost = t.host
	}
	return t, nil
}

// follow returns the target for a new cloudlet, keeping the session.
func (t *target) follow(reply *apiv1.FindCloudletReply, cfg *config.Config) (*target, bool) {
	if reply == nil || reply.Fqdn == "" || reply.EdgeEventsCookie == "" {
		return t, false
	}

	next := &target{
		host:             reply.Fqdn,
		port:             cfg.EdgeEvents.Port,
		sessionCookie:    t.sessionCookie,
		edgeEventsCookie: reply.EdgeEventsCookie,
		testHost:         reply.Fqdn,
	}
	for _, p := range reply.Ports {
		if p.Proto == apiv1.LProtoTCP || p.Proto == apiv1.LProtoHTTP {
			next.testHost = p.Host(reply.Fqdn)
			next.testPort = int(p.PublicPort)
			break
		}
	}
	return next, true
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
