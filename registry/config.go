package registry

import (
	"fmt"
	"time"
)

// Config holds the liveness timing of the registry. Values are seconds.
type Config struct {
	HeartbeatInterval int `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	StaleThreshold    int `yaml:"stale_threshold" mapstructure:"stale_threshold"`
	// RemovalThreshold defaults to twice StaleThreshold.
	RemovalThreshold int `yaml:"removal_threshold" mapstructure:"removal_threshold"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 60
	}
	if c.StaleThreshold == 0 {
		c.StaleThreshold = 300
	}
	if c.RemovalThreshold == 0 {
		c.RemovalThreshold = 2 * c.StaleThreshold
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("registry.heartbeat_interval must be positive (got: %d)", c.HeartbeatInterval)
	}
	if c.StaleThreshold <= 0 {
		return fmt.Errorf("registry.stale_threshold must be positive (got: %d)", c.StaleThreshold)
	}
	if c.RemovalThreshold <= c.StaleThreshold {
		return fmt.Errorf("registry.removal_threshold (%d) must be greater than registry.stale_threshold (%d)",
			c.RemovalThreshold, c.StaleThreshold)
	}
	return nil
}

// Interval returns the sweep period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// StaleAfter returns the age at which a record becomes Stale.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleThreshold) * time.Second
}

// RemoveAfter returns the age at which a record is deleted.
func (c *Config) RemoveAfter() time.Duration {
	return time.Duration(c.RemovalThreshold) * time.Second
}
