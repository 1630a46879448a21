// Package config loads the YAML configuration file recognized by
// cmd/dnsauthd: listen/upstream settings, the zone to serve, and the
// ambient knobs (metrics address, rate limit) layered under flags.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dnsauth/dnsauthd/internal/zoneconfig"
)

// Upstream is one entry of the recursive resolver's server list.
type Upstream struct {
	IP        string `yaml:"ip"`
	Port      uint16 `yaml:"port"`
	Recursive bool   `yaml:"recursive"`
}

// File is the top-level YAML shape of a --config file. Every field is
// optional; cmd/dnsauthd's flags override whatever a field sets.
type File struct {
	Port         int             `yaml:"port"`
	RemoteIP     string          `yaml:"remote_ip"`
	RemotePort   int             `yaml:"remote_port"`
	NoRecurse    bool            `yaml:"norec"`
	MetricsAddr  string          `yaml:"metrics_addr"`
	RateLimitQPS float64         `yaml:"rate_limit_qps"`
	Upstreams    []Upstream      `yaml:"upstreams"`
	Zone         zoneconfig.Zone `yaml:"zone"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
