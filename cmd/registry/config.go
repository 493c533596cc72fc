package main

import (
	"fmt"

	"github.com/kbukum/agentmesh/auth"
	"github.com/kbukum/agentmesh/config"
	"github.com/kbukum/agentmesh/observability"
	"github.com/kbukum/agentmesh/registry"
	"github.com/kbukum/agentmesh/server"
	"github.com/kbukum/agentmesh/version"
)

const serviceName = "agent-registry"

// Config is the registry binary's configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Registry      registry.Config      `yaml:"registry" mapstructure:"registry"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// envAliases are the variable names operators already use for the registry.
var envAliases = map[string]string{
	"REGISTRY_HOST":      "server.host",
	"REGISTRY_PORT":      "server.port",
	"HEARTBEAT_INTERVAL": "registry.heartbeat_interval",
	"STALE_THRESHOLD":    "registry.stale_threshold",
	"REMOVAL_THRESHOLD":  "registry.removal_threshold",
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Registry.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Auth.Production = c.IsProduction()
	c.Observability.ApplyDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

func loadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	opts = append([]config.LoaderOption{config.WithEnvAliases(envAliases)}, opts...)
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
