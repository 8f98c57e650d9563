package bootstrap

import (
	"time"

	"github.com/kbukum/sessionkit/artifact"
	"github.com/kbukum/sessionkit/authclient"
	"github.com/kbukum/sessionkit/config"
	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/location"
	"github.com/kbukum/sessionkit/scheduler"
	"github.com/kbukum/sessionkit/session"
)

// Config aggregates every sessionkit section into one loadable document.
// LoadConfig reads it from YAML and environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Store     kvstore.Config    `yaml:"store" mapstructure:"store"`
	Session   session.Config    `yaml:"session" mapstructure:"session"`
	Artifact  ArtifactConfig    `yaml:"artifact" mapstructure:"artifact"`
	Auth      authclient.Config `yaml:"auth" mapstructure:"auth"`
	Location  location.Config   `yaml:"location" mapstructure:"location"`
	Scheduler scheduler.Config  `yaml:"scheduler" mapstructure:"scheduler"`
}

// ApplyDefaults fills in zero-value fields across all sections.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Store.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Artifact.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Location.ApplyDefaults()
	c.Scheduler.ApplyDefaults()
	// Production deployments get strict refresh handling unless the
	// scheduler section says otherwise.
	if c.IsProduction() {
		c.Scheduler.Production = true
	}
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Artifact.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Scheduler.Validate()
}

// ArtifactConfig extends the cache settings with the remote store
// endpoint. An empty remote base URL disables the artifact cache.
type ArtifactConfig struct {
	artifact.Config `yaml:",inline" mapstructure:",squash"`

	Remote RemoteConfig `yaml:"remote" mapstructure:"remote"`
}

// ApplyDefaults fills in zero-value fields.
func (c *ArtifactConfig) ApplyDefaults() {
	c.Config.ApplyDefaults()
	c.Remote.ApplyDefaults()
}

// RemoteConfig locates the remote artifact store.
type RemoteConfig struct {
	// BaseURL of the remote store. Empty disables the cache.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Path of the artifact endpoint. Defaults to "/api/artifacts".
	Path string `yaml:"path" mapstructure:"path"`
	// Timeout bounds each remote call. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields.
func (c *RemoteConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/api/artifacts"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// LoadConfig loads the aggregate configuration from the conventional
// sources for serviceName: YAML config file, .env file, and environment
// variables.
func LoadConfig(serviceName string, opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
