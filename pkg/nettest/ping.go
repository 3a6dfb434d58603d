package nettest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"
)

// pingOnce sends a single echo request bounded by the context deadline.
// Unprivileged pings need net.ipv4.ping_group_range to include the
// process group on Linux.
func pingOnce(ctx context.Context, site *Site, privileged bool) (time.Duration, error) {
	if site.Host == "" {
		return 0, fmt.Errorf("site %q has no host to ping", site.Name())
	}

	pinger, err := ping.NewPinger(site.Host)
	if err != nil {
		return 0, fmt.Errorf("%w: resolve %s: %v", ErrProbeFailed, site.Host, err)
	}
	pinger.Count = 1
	pinger.SetPrivileged(privileged)
	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}
	if site.LocalAddr.IsValid() {
		pinger.Source = site.LocalAddr.String()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return 0, fmt.Errorf("%w: ping %s: %v", ErrProbeFailed, site.Host, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("%w: ping %s: no reply", ErrProbeFailed, site.Host)
	}
	return stats.AvgRtt, nil
}
