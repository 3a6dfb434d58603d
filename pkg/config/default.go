package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/leptonai/edgeprobe/pkg/edgeevents"
	"github.com/leptonai/edgeprobe/pkg/nettest"
	"github.com/leptonai/edgeprobe/pkg/netutil"
	"github.com/leptonai/edgeprobe/pkg/perfmode"
)

const (
	DefaultAPIVersion = "v1"
	DefaultLogLevel   = "info"
	DefaultStatusPort = 15140
)

var (
	DefaultDiscoveryTimeout  = metav1.Duration{Duration: 10 * time.Second}
	DefaultDiscoveryCacheTTL = metav1.Duration{Duration: time.Minute}
	DefaultDialTimeout       = metav1.Duration{Duration: edgeevents.DefaultDialTimeout}
)

func DefaultConfig(opts ...OpOption) (*Config, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}

	cfg := &Config{
		APIVersion: DefaultAPIVersion,
		LogLevel:   DefaultLogLevel,
		Discovery: DiscoveryConfig{
			CacheTTL: DefaultDiscoveryCacheTTL,
			Timeout:  DefaultDiscoveryTimeout,
		},
		NetTest: NetTestConfig{
			Timeout:        metav1.Duration{Duration: nettest.DefaultTestTimeout},
			Interval:       metav1.Duration{Duration: nettest.DefaultInterval},
			NumSamples:     perfmode.DefaultNumSamples,
			SampleCapacity: nettest.DefaultSampleCapacity,
			NetworkType:    netutil.NetworkTypeAny,
		},
		EdgeEvents: EdgeEventsConfig{
			Port:        edgeevents.DefaultPort,
			Path:        edgeevents.DefaultPath,
			TLS:         true,
			DialTimeout: DefaultDialTimeout,
		},
		Interfaces: netutil.DefaultPatterns(),
	}
	if op.dataDir != "" {
		cfg.LogFile = filepath.Join(op.dataDir, "edgeprobe.log")
	}
	return cfg, nil
}

// DefaultDataDir returns ~/.edgeprobe, creating it if missing.
func DefaultDataDir() (string, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return setupDir(filepath.Join(homeDir, ".edgeprobe"))
}

func setupDir(d string) (string, error) {
	if _, err := os.Stat(d); os.IsNotExist(err) {
		if err = os.MkdirAll(d, 0755); err != nil {
			return "", err
		}
	}
	return d, nil
}

// DefaultConfigFile returns the config path in the default data directory.
func DefaultConfigFile() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "edgeprobe.yaml"), nil
}
