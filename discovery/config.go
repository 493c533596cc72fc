package discovery

import (
	"fmt"
	"time"

	"github.com/kbukum/agentmesh/security"
	"github.com/kbukum/agentmesh/validation"
)

// Config holds discovery client configuration. Durations are seconds.
type Config struct {
	// Registries are queried in this order.
	Registries []string `yaml:"registries" mapstructure:"registries"`
	// KnownAgents maps agent ids to base URLs reachable without a registry.
	KnownAgents map[string]string `yaml:"known_agents" mapstructure:"known_agents"`

	// CacheTTL is how long a fetched card is served from cache. Default: 300.
	CacheTTL int `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// HTTPTimeout bounds each outbound request. Default: 10.
	HTTPTimeout int `yaml:"http_timeout" mapstructure:"http_timeout"`
	// QueryTimeout bounds a whole DiscoverAgent or ListAvailableAgents call. Default: 30.
	QueryTimeout int `yaml:"query_timeout" mapstructure:"query_timeout"`
	// HealthTimeout bounds a HealthCheckAgent probe. Default: 5.
	HealthTimeout int `yaml:"health_timeout" mapstructure:"health_timeout"`
	// MaxConcurrency caps in-flight source queries during a listing. Default: 8.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`

	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 300
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = 5
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 8
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("discovery.cache_ttl must be non-negative (got: %d)", c.CacheTTL)
	}
	if c.HTTPTimeout <= 0 || c.QueryTimeout <= 0 || c.HealthTimeout <= 0 {
		return fmt.Errorf("discovery timeouts must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("discovery.max_concurrency must be positive (got: %d)", c.MaxConcurrency)
	}
	for _, u := range c.Registries {
		if !validation.IsHTTPURL(u) {
			return fmt.Errorf("discovery.registries: %q is not an http(s) URL", u)
		}
	}
	for id, u := range c.KnownAgents {
		if !validation.IsHTTPURL(u) {
			return fmt.Errorf("discovery.known_agents[%s]: %q is not an http(s) URL", id, u)
		}
	}
	return c.TLS.Validate()
}

func (c *Config) ttl() time.Duration           { return time.Duration(c.CacheTTL) * time.Second }
func (c *Config) httpTimeout() time.Duration   { return time.Duration(c.HTTPTimeout) * time.Second }
func (c *Config) queryTimeout() time.Duration  { return time.Duration(c.QueryTimeout) * time.Second }
func (c *Config) healthTimeout() time.Duration { return time.Duration(c.HealthTimeout) * time.Second }
