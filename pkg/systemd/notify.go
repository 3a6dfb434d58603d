// Package systemd reports service state to systemd when running as a unit.
package systemd

import (
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/leptonai/edgeprobe/pkg/log"
)

// NotifyReady tells systemd that monitoring has started.
// It is a no-op outside of a notify unit.
func NotifyReady() error {
	return sdNotify(sd.SdNotifyReady)
}

// NotifyStopping tells systemd that monitoring is shutting down.
func NotifyStopping() error {
	return sdNotify(sd.SdNotifyStopping)
}

// NotifyWatchdog pings the systemd watchdog when WatchdogSec is set.
func NotifyWatchdog() error {
	return sdNotify(sd.SdNotifyWatchdog)
}

// WatchdogInterval returns the watchdog timeout configured for the unit,
// or zero when the watchdog is disabled.
func WatchdogInterval() time.Duration {
	d, err := sd.SdWatchdogEnabled(false)
	if err != nil {
		log.Logger.Warnw("failed to read watchdog settings", "error", err)
		return 0
	}
	return d
}

func sdNotify(state string) error {
	notified, err := sd.SdNotify(false, state)
	log.Logger.Debugw("sd notification", "state", state, "notified", notified, "error", err)
	return err
}
