// Package config loads the TOML configuration file that drives node
// identity, per-port universe assignment, and merge parameters.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// MergeMode names one of the merge engine's five algorithms.
type MergeMode string

const (
	ModeHTP     MergeMode = "htp"
	ModeLTP     MergeMode = "ltp"
	ModeLast    MergeMode = "last"
	ModeBackup  MergeMode = "backup"
	ModeDisable MergeMode = "disable"
)

func (m MergeMode) Valid() bool {
	switch m {
	case ModeHTP, ModeLTP, ModeLast, ModeBackup, ModeDisable:
		return true
	default:
		return false
	}
}

// NodeConfig is the node's self-identification, used for ArtPollReply.
type NodeConfig struct {
	ShortName string `toml:"short_name"`
	LongName  string `toml:"long_name"`
}

// PortConfig describes one of the two DMX output ports.
type PortConfig struct {
	Universe  UniverseAddr `toml:"universe"`
	Mode      MergeMode    `toml:"mode"`
	TimeoutMS int          `toml:"timeout_ms"`
	Enabled   bool         `toml:"enabled"`
}

// ArtNetConfig configures the Art-Net receiver.
type ArtNetConfig struct {
	Listen    string `toml:"listen"`     // e.g. ":6454"; empty disables, unless broadcast is also empty (Load then sets ":6454")
	Broadcast string `toml:"broadcast"`  // "auto" or a single broadcast address
	PcapIface string `toml:"pcap_iface"` // optional passive-capture interface
}

// SACNConfig configures the sACN receiver.
type SACNConfig struct {
	Interface string `toml:"interface"` // empty picks the default IPv4 interface
}

// MetricsConfig configures the status/metrics HTTP server.
type MetricsConfig struct {
	Listen string `toml:"listen"` // empty disables; e.g. ":8080"
}

// Config is the root of the TOML configuration file.
type Config struct {
	Node    NodeConfig            `toml:"node"`
	Port    map[string]PortConfig `toml:"port"`
	ArtNet  ArtNetConfig          `toml:"artnet"`
	SACN    SACNConfig            `toml:"sacn"`
	Metrics MetricsConfig         `toml:"metrics"`
}

const (
	defaultTimeoutMS = 2500
	minTimeoutMS     = 100
)

// Load reads and validates a TOML config file, applying the same
// defaults a freshly-flashed node would use.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Node.ShortName == "" {
		cfg.Node.ShortName = "dmxbridge"
	}
	if cfg.Node.LongName == "" {
		cfg.Node.LongName = "dmxbridge DMX/IP node"
	}
	if len(cfg.Node.ShortName) > 17 {
		return nil, fmt.Errorf("node.short_name must be <=17 characters")
	}
	if len(cfg.Node.LongName) > 63 {
		return nil, fmt.Errorf("node.long_name must be <=63 characters")
	}

	if cfg.ArtNet.Listen == "" && cfg.ArtNet.Broadcast == "" {
		cfg.ArtNet.Listen = ":6454"
		cfg.ArtNet.Broadcast = "auto"
	}

	if cfg.Port == nil {
		cfg.Port = map[string]PortConfig{}
	}
	for name, p := range cfg.Port {
		if p.TimeoutMS == 0 {
			p.TimeoutMS = defaultTimeoutMS
		}
		if p.TimeoutMS < minTimeoutMS {
			p.TimeoutMS = minTimeoutMS
		}
		if p.Mode == "" {
			p.Mode = ModeHTP
		}
		if !p.Mode.Valid() {
			return nil, fmt.Errorf("port %q: invalid mode %q", name, p.Mode)
		}
		cfg.Port[name] = p
	}

	return &cfg, nil
}
