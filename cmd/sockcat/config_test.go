package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sockcat.yaml")
	data := `
listen: true
port: 9000
echo: true
close_timeout: 2s
backlog: 4
advertise: bench
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Listen)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Echo)
	assert.Equal(t, 2*time.Second, cfg.CloseTimeout)
	assert.Equal(t, 4, cfg.Backlog)
	assert.Equal(t, "bench", cfg.Advertise)

	// Unset keys keep their defaults.
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
	assert.Equal(t, -1, cfg.Probe)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	_, err = LoadConfigFile(path)
	assert.Error(t, err)
}

func TestMergeFlags(t *testing.T) {
	base := DefaultConfig()
	base.Port = 9000
	base.Echo = true

	flags := DefaultConfig()
	flags.Port = 7000
	flags.LogLevel = "debug"

	merged := MergeFlags(base, flags, map[string]bool{"port": true})
	assert.Equal(t, 7000, merged.Port)
	assert.True(t, merged.Echo)
	assert.Equal(t, "info", merged.LogLevel, "unset flags must not override the file")
}

func TestConfigValidate(t *testing.T) {
	client := DefaultConfig()
	client.RemoteHost = "localhost"
	client.RemotePort = 80

	listen := DefaultConfig()
	listen.Listen = true

	tests := []struct {
		name    string
		modify  func(c *Config)
		base    Config
		wantErr bool
	}{
		{"client", func(c *Config) {}, client, false},
		{"client without host", func(c *Config) { c.RemoteHost = "" }, client, true},
		{"client without port", func(c *Config) { c.RemotePort = 0 }, client, true},
		{"client advertise", func(c *Config) { c.Advertise = "x" }, client, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, client, true},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, client, true},
		{"cert without key", func(c *Config) { c.CertFile = "a.pem" }, client, true},
		{"listen", func(c *Config) {}, listen, false},
		{"listen bad port", func(c *Config) { c.Port = 70000 }, listen, true},
		{"listen bad backlog", func(c *Config) { c.Backlog = -1 }, listen, true},
		{"probe", func(c *Config) { c.Probe = 8080 }, DefaultConfig(), false},
		{"probe out of range", func(c *Config) { c.Probe = 70000 }, DefaultConfig(), true},
		{"interactive", func(c *Config) { c.Interactive = true }, DefaultConfig(), false},
		{"browse", func(c *Config) { c.Browse = time.Second }, DefaultConfig(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.base
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
