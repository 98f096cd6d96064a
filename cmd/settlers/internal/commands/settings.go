package commands

import (
	"fmt"
	"os"

	"github.com/wolfeidau/settlers/internal/config"
)

// settings resolves configuration in order of precedence: command line and
// environment, then config files, then defaults.
func (c *ServeCmd) settings() (*config.Settings, error) {
	paths := c.Config
	if len(paths) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		paths, err = config.Search(cwd)
		if err != nil {
			return nil, err
		}
	}

	s, err := config.Load(paths...)
	if err != nil {
		return nil, err
	}

	c.override(s)
	s.ApplyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *ServeCmd) override(s *config.Settings) {
	if c.Addr != "" {
		s.Addr = c.Addr
	}
	if c.ResourcesPath != "" {
		s.ResourcesPath = c.ResourcesPath
	}
	if c.CertPath != "" {
		s.TLS.CertPath = c.CertPath
	}
	if c.KeyPath != "" {
		s.TLS.KeyPath = c.KeyPath
	}
	if len(c.CORSOrigins) > 0 {
		s.CORSOrigins = c.CORSOrigins
	}
	if c.MaxConnections != 0 {
		s.MaxConnections = c.MaxConnections
	}
	if c.RelayPolicy != "" {
		s.Relay.Policy = c.RelayPolicy
	}
	if c.Store != "" {
		s.Store = c.Store
	}
	if c.DatabaseURL != "" {
		s.Database.URL = c.DatabaseURL
	}
	if c.AutoMigrate {
		s.Database.AutoMigrate = true
	}
	if c.Telemetry {
		s.Telemetry = true
	}
	if c.BuildAssets {
		s.BuildAssets = true
	}
}
