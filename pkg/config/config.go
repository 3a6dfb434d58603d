// Package config provides the edgeprobe configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/leptonai/edgeprobe/pkg/netutil"
)

// Config is the edgeprobe configuration, loaded from YAML.
type Config struct {
	APIVersion string `json:"api_version"`

	// Log level, one of debug, info, warn or error.
	LogLevel string `json:"log_level"`
	// Log file; empty logs to stderr.
	// Stream traffic is audited next to it, see log.CreateAuditLogFilepath.
	LogFile string `json:"log_file"`

	Discovery  DiscoveryConfig  `json:"discovery"`
	NetTest    NetTestConfig    `json:"net_test"`
	EdgeEvents EdgeEventsConfig `json:"edge_events"`

	// Interface naming patterns used to bind probes to a network type.
	Interfaces netutil.Patterns `json:"interfaces"`

	// Address of the status server in monitor mode.
	// Empty disables the server.
	StatusAddress string `json:"status_address"`
}

type DiscoveryConfig struct {
	// Endpoint of the discovery service, e.g. "https://discovery.example.com".
	Endpoint    string `json:"endpoint"`
	CarrierName string `json:"carrier_name"`
	// Time to cache app instance lists; zero disables caching.
	CacheTTL           metav1.Duration `json:"cache_ttl"`
	Timeout            metav1.Duration `json:"timeout"`
	InsecureSkipVerify bool            `json:"insecure_skip_verify"`
}

type NetTestConfig struct {
	// Per-probe timeout.
	Timeout metav1.Duration `json:"timeout"`
	// Time between rounds in continuous mode.
	Interval metav1.Duration `json:"interval"`
	// Rounds per batch when selecting a site.
	NumSamples int `json:"num_samples"`
	// Samples kept per site.
	SampleCapacity int `json:"sample_capacity"`
	// Evict a site after this many consecutive failures in
	// continuous mode; zero never evicts.
	MaxConsecutiveFailures int `json:"max_consecutive_failures"`

	// Set true when the client may send ICMP echo.
	CanPing bool `json:"can_ping"`
	// Use raw sockets for ping, requires privileges.
	PrivilegedPing bool `json:"privileged_ping"`

	// Only probe app ports that include this port; zero probes the first usable port.
	TestPort int `json:"test_port"`
	// Bind probes to the interface of this network type.
	NetworkType netutil.NetworkType `json:"network_type"`
}

type EdgeEventsConfig struct {
	// Overrides the host of the selected site.
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`

	TLS                bool `json:"tls"`
	InsecureSkipVerify bool `json:"insecure_skip_verify"`

	DialTimeout metav1.Duration `json:"dial_timeout"`
	// Interval of latency updates posted on the stream; zero disables.
	PostInterval metav1.Duration `json:"post_interval"`
}

var (
	ErrInvalidNumSamples     = errors.New("net_test.num_samples must be positive")
	ErrInvalidSampleCapacity = errors.New("net_test.sample_capacity must be positive")
	ErrInvalidTimeout        = errors.New("net_test.timeout must be positive")
	ErrInvalidInterval       = errors.New("net_test.interval must be positive")
	ErrInvalidPort           = errors.New("port must be between 0 and 65535")
)

func (cfg *Config) Validate() error {
	if cfg.NetTest.NumSamples <= 0 {
		return ErrInvalidNumSamples
	}
	if cfg.NetTest.SampleCapacity <= 0 {
		return ErrInvalidSampleCapacity
	}
	if cfg.NetTest.Timeout.Duration <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.NetTest.Interval.Duration <= 0 {
		return ErrInvalidInterval
	}
	if cfg.NetTest.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("net_test.max_consecutive_failures must not be negative, got %d", cfg.NetTest.MaxConsecutiveFailures)
	}
	if cfg.NetTest.TestPort < 0 || cfg.NetTest.TestPort > 65535 {
		return fmt.Errorf("net_test.test_port %d: %w", cfg.NetTest.TestPort, ErrInvalidPort)
	}
	if cfg.EdgeEvents.Port < 0 || cfg.EdgeEvents.Port > 65535 {
		return fmt.Errorf("edge_events.port %d: %w", cfg.EdgeEvents.Port, ErrInvalidPort)
	}
	if _, err := cfg.Interfaces.Pattern(cfg.NetTest.NetworkType); err != nil {
		return err
	}
	if err := cfg.Interfaces.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads the YAML file on top of the defaults and validates the result.
func Load(file string, opts ...OpOption) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	cfg, err := DefaultConfig(opts...)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", file, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", file, err)
	}
	return cfg, nil
}

// YAML returns the config as YAML.
func (cfg *Config) YAML() ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Write saves the config as YAML.
func (cfg *Config) Write(file string) error {
	b, err := cfg.YAML()
	if err != nil {
		return err
	}
	return os.WriteFile(file, b, 0644)
}
