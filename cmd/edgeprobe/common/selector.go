package common

import (
	"time"

	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/nettest"
	"github.com/leptonai/edgeprobe/pkg/netutil"
	"github.com/leptonai/edgeprobe/pkg/perfmode"
)

// NewSelector builds a selector from the net test config, binding probes
// to the interface of the configured network type.
func NewSelector(cfg *config.Config, opts ...perfmode.OpOption) (*perfmode.Selector, error) {
	pattern, err := cfg.Interfaces.Pattern(cfg.NetTest.NetworkType)
	if err != nil {
		return nil, err
	}
	localAddr, err := netutil.ResolveLocalAddr(pattern)
	if err != nil {
		return nil, err
	}
	if localAddr.IsValid() {
		log.Logger.Infow("binding probes", "networkType", cfg.NetTest.NetworkType, "localAddr", localAddr)
	}

	all := []perfmode.OpOption{
		perfmode.WithCanPing(cfg.NetTest.CanPing),
		perfmode.WithLocalAddr(localAddr),
		perfmode.WithSampleCapacity(cfg.NetTest.SampleCapacity),
		perfmode.WithTestTimeout(cfg.NetTest.Timeout.Duration),
		perfmode.WithTesterOptions(nettest.WithPrivilegedPing(cfg.NetTest.PrivilegedPing)),
	}
	return perfmode.New(append(all, opts...)...), nil
}

// TesterOptions returns the continuous-mode options from the config.
func TesterOptions(cfg *config.Config) []nettest.OpOption {
	return []nettest.OpOption{
		nettest.WithPrivilegedPing(cfg.NetTest.PrivilegedPing),
		nettest.WithTestTimeout(cfg.NetTest.Timeout.Duration),
		nettest.WithInterval(cfg.NetTest.Interval.Duration),
		nettest.WithMaxConsecutiveFailures(cfg.NetTest.MaxConsecutiveFailures),
	}
}

// Since returns a duration rounded for display.
func Since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}
