// Package events implements the "events" command.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/edgeevents"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
)

var ErrNoEdgeEventsEndpoint = errors.New("no edge event endpoint, set --host or select a site first")

func Command(cliContext *cli.Context) error {
	cfg, err := cmdcommon.Setup(cliContext)
	if err != nil {
		return err
	}
	log.Logger.Debugw("starting events command")

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	done := cmdcommon.HandleSignals(rootCancel, nil)

	target, err := resolveTarget(rootCtx, cliContext, cfg)
	if err != nil {
		return err
	}

	sink := edgeevents.NewChanSink(64)
	st := newStream(cfg, target, sink)
	if err := st.open(rootCtx, deviceInfo(rootCtx, cliContext)); err != nil {
		return err
	}
	defer st.close()
	fmt.Printf("%s edge event stream open to %s:%d\n", cmdcommon.CheckMark, target.host, target.port)

	loc := cmdcommon.Location(cliContext)
	if st.conn.PostLocationUpdate(loc) {
		log.Logger.Debugw("posted location", "location", loc.String())
	}

	var tickC <-chan time.Time
	if d := cfg.EdgeEvents.PostInterval.Duration; d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		tickC = ticker.C
	}
	numSamples := cfg.NetTest.NumSamples

	for {
		select {
		case <-rootCtx.Done():
			return nil
		case <-done:
			return nil

		case <-tickC:
			if !postLatency(rootCtx, st, loc, numSamples) {
				log.Logger.Debugw("periodic latency update not posted")
			}

		case err := <-sink.Errors():
			fmt.Printf("%s %v\n", cmdcommon.WarningSign, err)
			if !errors.Is(err, edgeevents.ErrReceiveFailed) {
				continue
			}
			if !cliContext.Bool("reconnect") {
				return err
			}
			if rerr := st.reopen(rootCtx, deviceInfo(rootCtx, cliContext)); rerr != nil {
				return fmt.Errorf("%w: %w", rerr, err)
			}

		case ev := <-sink.Events():
			printEvent(ev)

			switch ev.EventType {
			case apiv1.ServerEventLatencyRequest:
				postLatency(rootCtx, st, loc, numSamples)

			case apiv1.ServerEventCloudletUpdate:
				next, ok := st.target.follow(ev.NewCloudlet, cfg)
				if !ok || !cliContext.Bool("follow") {
					continue
				}
				if err := st.move(rootCtx, next, deviceInfo(rootCtx, cliContext)); err != nil {
					return err
				}
				fmt.Printf("%s moved edge event stream to %s:%d\n", cmdcommon.CheckMark, next.host, next.port)
			}
		}
	}
}

func newConn(cfg *config.Config, target *target, sink edgeevents.EventSink) *edgeevents.Conn {
	return edgeevents.New(target.host, target.port, sink,
		edgeevents.WithCookies(target.sessionCookie, target.edgeEventsCookie),
		edgeevents.WithPath(cfg.EdgeEvents.Path),
		edgeevents.WithTLS(cfg.EdgeEvents.TLS),
		edgeevents.WithInsecureSkipVerify(cfg.EdgeEvents.InsecureSkipVerify),
		edgeevents.WithDialTimeout(cfg.EdgeEvents.DialTimeout.Duration),
		edgeevents.WithAuditLogger(cmdcommon.AuditLogger(cfg)),
		edgeevents.WithTesterOptions(
			nettest.WithTestTimeout(cfg.NetTest.Timeout.Duration),
			nettest.WithPrivilegedPing(cfg.NetTest.PrivilegedPing),
		),
	)
}

func deviceInfo(ctx context.Context, cliContext *cli.Context) *apiv1.DeviceInfo {
	info := edgeevents.DefaultDeviceInfo(ctx)
	info.DataNetworkType = cliContext.String("network-type")
	info.CarrierName = cliContext.String("carrier")
	return info
}

// postLatency measures the app port of the target, or pings the host when
// no app port is known, and prints a summary of what was posted.
func postLatency(ctx context.Context, st *stream, loc apiv1.Loc, numSamples int) bool {
	var ok bool
	if st.target.testPort > 0 {
		ok = st.conn.TestConnectAndPostLatencyUpdate(ctx, st.target.testHost, st.target.testPort, loc, numSamples)
	} else {
		ok = st.conn.TestPingAndPostLatencyUpdate(ctx, st.target.testHost, loc, numSamples)
	}
	if ok {
		if s := st.conn.LastPostedStatistics(); s != nil {
			fmt.Printf("%s posted %d sample(s) avg=%.3fms stddev=%.3fms\n", cmdcommon.CheckMark, s.NumSamples, s.Avg, s.StdDev)
		}
	}
	return ok
}

func printEvent(ev *apiv1.ServerEdgeEvent) {
	ts := time.Now().Format(time.TimeOnly)
	switch ev.EventType {
	case apiv1.ServerEventLatencyProcessed:
		if st := ev.Statistics; st != nil {
			fmt.Printf("%s %s %s avg=%.3fms min=%.3fms max=%.3fms stddev=%.3fms samples=%d\n",
				cmdcommon.InfoSign, ts, ev.EventType, st.Avg, st.Min, st.Max, st.StdDev, st.NumSamples)
			return
		}
	case apiv1.ServerEventCloudletState:
		fmt.Printf("%s %s %s %s\n", cmdcommon.InfoSign, ts, ev.EventType, ev.CloudletState)
		return
	case apiv1.ServerEventCloudletMaintenance:
		fmt.Printf("%s %s %s %s\n", cmdcommon.InfoSign, ts, ev.EventType, ev.MaintenanceState)
		return
	case apiv1.ServerEventAppInstHealth:
		fmt.Printf("%s %s %s %s\n", cmdcommon.InfoSign, ts, ev.EventType, ev.HealthCheck)
		return
	case apiv1.ServerEventCloudletUpdate:
		if ev.NewCloudlet != nil {
			fmt.Printf("%s %s %s %s (%s)\n", cmdcommon.InfoSign, ts, ev.EventType, ev.NewCloudlet.Fqdn, ev.NewCloudlet.CloudletName)
			return
		}
	case apiv1.ServerEventError:
		fmt.Printf("%s %s %s %s\n", cmdcommon.WarningSign, ts, ev.EventType, ev.ErrorMsg)
		return
	}
	fmt.Printf("%s %s %s\n", cmdcommon.InfoSign, ts, ev.EventType)
}
