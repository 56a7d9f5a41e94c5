package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sockwrap/sockwrap-go/pkg/socket"
)

// Config holds sockcat settings. Fields carry yaml tags so the same struct
// can be loaded from a -config file.
type Config struct {
	Listen       bool          `yaml:"listen"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Echo         bool          `yaml:"echo"`
	TLS          bool          `yaml:"tls"`
	CertFile     string        `yaml:"cert_file"`
	KeyFile      string        `yaml:"key_file"`
	Timeout      time.Duration `yaml:"timeout"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
	Backlog      int           `yaml:"backlog"`
	Advertise    string        `yaml:"advertise"`
	ProtocolLog  string        `yaml:"protocol_log"`
	Probe        int           `yaml:"probe"`
	Browse       time.Duration `yaml:"browse"`
	Interactive  bool          `yaml:"interactive"`
	LogLevel     string        `yaml:"log_level"`

	// RemoteHost and RemotePort come from positional arguments.
	RemoteHost string `yaml:"remote_host"`
	RemotePort uint16 `yaml:"remote_port"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Port:         -1,
		Timeout:      socket.DefaultConnectTimeout,
		CloseTimeout: socket.DefaultCloseTimeout,
		Probe:        -1,
		LogLevel:     "info",
	}
}

// LoadConfigFile reads a YAML configuration on top of the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// setFlags returns the names of flags given on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// MergeFlags overlays the explicitly set flag values from flags onto base.
func MergeFlags(base, flags Config, set map[string]bool) Config {
	merged := base
	if set["listen"] {
		merged.Listen = flags.Listen
	}
	if set["host"] {
		merged.Host = flags.Host
	}
	if set["port"] {
		merged.Port = flags.Port
	}
	if set["echo"] {
		merged.Echo = flags.Echo
	}
	if set["tls"] {
		merged.TLS = flags.TLS
	}
	if set["cert"] {
		merged.CertFile = flags.CertFile
	}
	if set["key"] {
		merged.KeyFile = flags.KeyFile
	}
	if set["timeout"] {
		merged.Timeout = flags.Timeout
	}
	if set["close-timeout"] {
		merged.CloseTimeout = flags.CloseTimeout
	}
	if set["backlog"] {
		merged.Backlog = flags.Backlog
	}
	if set["advertise"] {
		merged.Advertise = flags.Advertise
	}
	if set["protocol-log"] {
		merged.ProtocolLog = flags.ProtocolLog
	}
	if set["probe"] {
		merged.Probe = flags.Probe
	}
	if set["browse"] {
		merged.Browse = flags.Browse
	}
	if set["interactive"] {
		merged.Interactive = flags.Interactive
	}
	if set["log-level"] {
		merged.LogLevel = flags.LogLevel
	}
	return merged
}

// Validate checks that the configuration describes one runnable mode.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	if c.Probe >= 0 {
		if c.Probe > 65535 {
			return fmt.Errorf("invalid probe port %d", c.Probe)
		}
		return nil
	}

	if c.Timeout < 0 || c.CloseTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("-cert and -key must be given together")
	}

	switch {
	case c.Browse > 0, c.Interactive:
		return nil
	case c.Listen:
		if c.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Port)
		}
		if c.Backlog < 0 {
			return fmt.Errorf("invalid backlog %d", c.Backlog)
		}
		return nil
	default:
		if c.RemoteHost == "" || c.RemotePort == 0 {
			return errors.New("host and port are required to connect")
		}
		if c.Advertise != "" {
			return errors.New("-advertise requires -listen")
		}
		return nil
	}
}
