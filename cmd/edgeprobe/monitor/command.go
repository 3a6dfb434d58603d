// Package monitor implements the "monitor" command.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/edgeevents"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
	"github.com/leptonai/edgeprobe/pkg/server"
	pkgsystemd "github.com/leptonai/edgeprobe/pkg/systemd"
	"github.com/leptonai/edgeprobe/version"
)

func Command(cliContext *cli.Context) error {
	cfg, err := cmdcommon.Setup(cliContext)
	if err != nil {
		return err
	}
	log.Logger.Debugw("starting monitor command")

	if d := cliContext.Duration("interval"); d > 0 {
		cfg.NetTest.Interval = metav1.Duration{Duration: d}
	}
	if n := cliContext.Int("max-failures"); n > 0 {
		cfg.NetTest.MaxConsecutiveFailures = n
	}
	if p := cliContext.Int("test-port"); p > 0 {
		cfg.NetTest.TestPort = p
	}
	if cliContext.Bool("can-ping") {
		cfg.NetTest.CanPing = true
	}
	if addr := cliContext.String("listen-address"); addr != "" {
		cfg.StatusAddress = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	log.Logger.Infow("starting edgeprobe monitor", "version", version.Version)

	done := cmdcommon.HandleSignals(rootCancel, func() {
		if err := pkgsystemd.NotifyStopping(); err != nil {
			log.Logger.Warnw("notify stopping failed", "error", err)
		}
	})

	cands, err := cmdcommon.LoadCandidates(rootCtx, cliContext, cfg)
	if err != nil {
		return err
	}
	sel, err := cmdcommon.NewSelector(cfg)
	if err != nil {
		return err
	}

	sessionCookie := cands.SessionCookie
	if c := cliContext.String("session-cookie"); c != "" {
		sessionCookie = c
	}

	m := &monitor{
		cfg:           cfg,
		sel:           sel,
		sessionCookie: sessionCookie,
		loc:           cmdcommon.Location(cliContext),
		postEvents:    cliContext.Bool("post-latency"),
		audit:         cmdcommon.AuditLogger(cfg),
		watchdog:      pkgsystemd.WatchdogInterval() > 0,
		sites:         make(map[string]*nettest.Site),
	}
	m.ctx, m.cancel = context.WithCancel(rootCtx)
	m.tester = nettest.New(append(cmdcommon.TesterOptions(cfg), nettest.WithOnRoundComplete(m.onRoundComplete))...)
	defer m.shutdown()

	if err := m.apply(cands.Reply); err != nil {
		return err
	}
	if err := m.tester.Start(); err != nil {
		return err
	}

	if f := cliContext.String("app-inst-list"); f != "" {
		if err := m.watch(rootCtx, f); err != nil {
			return fmt.Errorf("failed to watch %q: %w", f, err)
		}
	}

	if cfg.StatusAddress != "" {
		srv, err := server.New(cfg.StatusAddress, m.tester)
		if err != nil {
			return err
		}
		defer srv.Stop()
		fmt.Printf("%s serving status on %s\n", cmdcommon.CheckMark, srv.Addr())
	}

	if err := pkgsystemd.NotifyReady(); err != nil {
		log.Logger.Warnw("notify ready failed", "error", err)
	}

	start := time.Now()
	fmt.Printf("%s monitoring %d site(s) every %v\n", cmdcommon.CheckMark, len(m.tester.Sites()), cfg.NetTest.Interval.Duration)

	select {
	case <-rootCtx.Done():
	case <-done:
	}
	log.Logger.Infow("monitor stopped", "elapsed", time.Since(start))
	return nil
}

// startOpen opens the stream off the tester loop so Stop never waits on a
// handshake. At most one open runs at a time.
func (m *monitor) startOpen(site *nettest.Site) {
	if !m.opening.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.opening.Store(false)
		m.openConn(site)
	}()
}

// openConn opens the edge event stream to the site once both cookies are
// known.
func (m *monitor) openConn(site *nettest.Site) {
	if m.sessionCookie == "" || site.AppInst == nil || site.AppInst.EdgeEventsCookie == "" {
		log.Logger.Debugw("edge event cookies not available", "site", site.Name())
		return
	}

	host := m.cfg.EdgeEvents.Host
	if host == "" {
		host = site.AppInst.Fqdn
	}
	var conn *edgeevents.Conn
	conn = edgeevents.New(host, m.cfg.EdgeEvents.Port, edgeevents.SinkFuncs{
		Event: m.onServerEvent,
		Error: func(err error) { m.onStreamError(conn, err) },
	},
		edgeevents.WithCookies(m.sessionCookie, site.AppInst.EdgeEventsCookie),
		edgeevents.WithPath(m.cfg.EdgeEvents.Path),
		edgeevents.WithTLS(m.cfg.EdgeEvents.TLS),
		edgeevents.WithInsecureSkipVerify(m.cfg.EdgeEvents.InsecureSkipVerify),
		edgeevents.WithDialTimeout(m.cfg.EdgeEvents.DialTimeout.Duration),
		edgeevents.WithAuditLogger(m.audit),
	)

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.EdgeEvents.DialTimeout.Duration)
	defer cancel()
	if !conn.Open(ctx, edgeevents.DefaultDeviceInfo(ctx)) {
		return
	}

	m.connMu.Lock()
	if m.ctx.Err() != nil {
		// shut down while dialing
		m.connMu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.connMu.Unlock()
}

func (m *monitor) closeConn() {
	m.connMu.Lock()
	conn := m.conn
	m.conn = nil
	m.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// shutdown stops testing, abandons any stream dial in flight and closes
// the stream.
func (m *monitor) shutdown() {
	m.tester.Stop()
	m.cancel()
	m.closeConn()
}
