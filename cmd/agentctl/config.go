package main

import (
	"github.com/kbukum/agentmesh/auth"
	"github.com/kbukum/agentmesh/config"
	"github.com/kbukum/agentmesh/discovery"
	"github.com/kbukum/agentmesh/version"
)

const serviceName = "agentctl"

// Config is the client's configuration. Auth.Enabled attaches a bearer
// token to registry requests.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Discovery discovery.Config `yaml:"discovery" mapstructure:"discovery"`
	Auth      auth.Config      `yaml:"auth" mapstructure:"auth"`
}

var envAliases = map[string]string{
	"AGENTCTL_CLIENT_ID": "auth.client_id",
	"AGENTCTL_TENANT_ID": "auth.tenant_id",
	"AGENTCTL_TOKEN_KEY": "auth.token_file_key",
}

// ApplyDefaults applies defaults to every section. Logs go to stderr at
// warn so stdout carries only command output.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Auth.Production = c.IsProduction()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

func loadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	opts = append([]config.LoaderOption{config.WithEnvAliases(envAliases)}, opts...)
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
