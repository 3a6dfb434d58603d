package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/edgeevents"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
	"github.com/leptonai/edgeprobe/pkg/perfmode"
	pkgsystemd "github.com/leptonai/edgeprobe/pkg/systemd"
)

type monitor struct {
	cfg    *config.Config
	sel    *perfmode.Selector
	tester *nettest.Tester

	sessionCookie string
	loc           apiv1.Loc
	postEvents    bool
	audit         log.AuditLogger
	watchdog      bool

	// ctx bounds stream dials; cancelled by shutdown
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	// keyed by site name
	sites map[string]*nettest.Site

	connMu  sync.Mutex
	conn    *edgeevents.Conn
	opening atomic.Bool
}

// apply syncs the tester queue with the candidates: new sites are added,
// sites no longer listed are removed, known sites keep their samples.
func (m *monitor) apply(reply *apiv1.AppInstListReply) error {
	sites, err := m.sel.BuildSites(reply, m.cfg.NetTest.TestPort)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		name := s.Name()
		current[name] = struct{}{}
		if _, ok := m.sites[name]; ok {
			continue
		}
		m.sites[name] = s
		m.tester.Add(s)
		log.Logger.Infow("site added", "site", name, "cloudlet", s.CloudletName)
	}
	for name, s := range m.sites {
		if _, ok := current[name]; ok {
			continue
		}
		delete(m.sites, name)
		m.tester.Remove(s)
		log.Logger.Infow("site removed", "site", name)
	}
	return nil
}

// watch reloads the candidate file whenever it is written.
// The directory is watched so that editors replacing the file are seen.
func (m *monitor) watch(ctx context.Context, file string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(file)); err != nil {
		_ = w.Close()
		return err
	}

	target := filepath.Clean(file)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				m.reload(file)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Logger.Warnw("candidate file watch error", "error", err)
			}
		}
	}()
	return nil
}

func (m *monitor) reload(file string) {
	reply, err := cmdcommon.ReadCandidateFile(file)
	if err != nil {
		// partially written, the next write event retries
		log.Logger.Warnw("failed to reload candidates", "file", file, "error", err)
		return
	}
	if err := m.apply(reply); err != nil {
		log.Logger.Warnw("failed to apply candidates", "file", file, "error", err)
		return
	}
	log.Logger.Infow("candidates reloaded", "file", file, "sites", len(m.tester.Sites()))
}

func (m *monitor) onRoundComplete(ranked []*nettest.Site) {
	if m.watchdog {
		if err := pkgsystemd.NotifyWatchdog(); err != nil {
			log.Logger.Warnw("notify watchdog failed", "error", err)
		}
	}
	if len(ranked) == 0 || ranked[0].Size() == 0 {
		log.Logger.Warnw("no site answered yet")
		return
	}

	best := ranked[0]
	log.Logger.Infow("round complete",
		"best", best.Name(),
		"cloudlet", best.CloudletName,
		"mean_ms", best.Mean(),
		"stddev_ms", best.StdDev(),
	)

	if !m.postEvents {
		return
	}

	m.connMu.Lock()
	conn := m.conn
	if conn != nil && conn.IsShutdown() {
		// closed after a receive failure
		m.conn, conn = nil, nil
	}
	m.connMu.Unlock()
	if conn == nil {
		m.startOpen(best)
		return
	}
	if !conn.PostLatencyUpdate(best, m.loc) {
		log.Logger.Debugw("latency update not posted", "site", best.Name(), "paused", conn.Paused())
	}
}

// onStreamError runs on the stream reader. A broken stream is closed in the
// background and reopened by the next round.
func (m *monitor) onStreamError(conn *edgeevents.Conn, err error) {
	log.Logger.Warnw("edge event stream error", "error", err)
	if !errors.Is(err, edgeevents.ErrReceiveFailed) {
		return
	}
	go conn.Close()
}

func (m *monitor) onServerEvent(ev *apiv1.ServerEdgeEvent) {
	switch ev.EventType {
	case apiv1.ServerEventCloudletMaintenance:
		log.Logger.Warnw("cloudlet maintenance", "state", ev.MaintenanceState)
	case apiv1.ServerEventCloudletState:
		log.Logger.Warnw("cloudlet state changed", "state", ev.CloudletState)
	case apiv1.ServerEventAppInstHealth:
		log.Logger.Warnw("app instance health changed", "health", ev.HealthCheck)
	case apiv1.ServerEventCloudletUpdate:
		if ev.NewCloudlet != nil {
			log.Logger.Infow("server suggests a new cloudlet", "fqdn", ev.NewCloudlet.Fqdn, "cloudlet", ev.NewCloudlet.CloudletName)
		}
	case apiv1.ServerEventLatencyProcessed:
		if ev.Statistics != nil {
			log.Logger.Debugw("latency processed", "avg_ms", ev.Statistics.Avg, "samples", ev.Statistics.NumSamples)
		}
	case apiv1.ServerEventError:
		log.Logger.Warnw("edge event server error", "error", ev.ErrorMsg)
	default:
		log.Logger.Debugw("edge event", "type", ev.EventType)
	}
}
