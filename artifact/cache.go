package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/logger"
)

// DefaultTTL is the local cache lifetime. The remote store keeps
// artifacts longer; seven days bounds local staleness.
const DefaultTTL = 7 * 24 * time.Hour

// Config configures the artifact cache.
type Config struct {
	// Namespace prefixes every cache key. Defaults to "artifact".
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	// TTL is the local entry lifetime. Defaults to 7 days.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("artifact: ttl must be positive")
	}
	return nil
}

// Cache is the cache-aside layer over a local store and a remote
// collaborator. local may be nil: every operation then goes straight
// to the remote store.
type Cache struct {
	local  kvstore.Store
	remote RemoteStore
	cfg    Config
	log    *logger.Logger
}

// NewCache creates an artifact cache.
func NewCache(local kvstore.Store, remote RemoteStore, cfg Config, log *logger.Logger) *Cache {
	cfg.ApplyDefaults()
	return &Cache{
		local:  local,
		remote: remote,
		cfg:    cfg,
		log:    log.WithComponent("artifact"),
	}
}

// GetCached resolves an artifact: local store first, then the remote
// store on miss or local failure. A remote hit warms the local store
// before returning. Local failures are logged, never propagated.
func (c *Cache) GetCached(ctx context.Context, topic, variant string) (string, bool, error) {
	key := c.key(topic, variant)

	localUp := true
	if c.local != nil {
		value, ok, err := c.local.Get(ctx, key.String())
		if err != nil {
			localUp = false
			c.log.Warn("local cache read failed, falling through", c.keyFields(key, err))
		} else if ok {
			return value, true, nil
		}
	} else {
		localUp = false
	}

	value, ok, err := c.remote.GetArtifact(ctx, key.Topic, key.Variant)
	if err != nil || !ok {
		return "", false, err
	}

	if localUp {
		if err := c.local.Set(ctx, key.String(), value, c.cfg.TTL); err != nil {
			c.log.Warn("cache warming failed", c.keyFields(key, err))
		}
	}
	return value, true, nil
}

// PutCached writes the artifact locally (best effort, 7-day TTL) and
// through to the remote store. The return value reflects the remote
// outcome only.
func (c *Cache) PutCached(ctx context.Context, topic, variant, artifact string) bool {
	key := c.key(topic, variant)

	if c.local != nil {
		if err := c.local.Set(ctx, key.String(), artifact, c.cfg.TTL); err != nil {
			c.log.Warn("local cache write failed", c.keyFields(key, err))
		}
	}

	if err := c.remote.PutArtifact(ctx, key.Topic, key.Variant, artifact); err != nil {
		c.log.Warn("remote cache write failed", c.keyFields(key, err))
		return false
	}
	return true
}

// Evict removes the artifact from both stores. The return value
// reflects the remote outcome only.
func (c *Cache) Evict(ctx context.Context, topic, variant string) bool {
	key := c.key(topic, variant)

	if c.local != nil {
		if err := c.local.Del(ctx, key.String()); err != nil {
			c.log.Warn("local cache delete failed", c.keyFields(key, err))
		}
	}

	if err := c.remote.DeleteArtifact(ctx, key.Topic, key.Variant); err != nil {
		c.log.Warn("remote cache delete failed", c.keyFields(key, err))
		return false
	}
	return true
}

func (c *Cache) key(topic, variant string) Key {
	return Key{Namespace: c.cfg.Namespace, Topic: topic, Variant: variant}.Normalize()
}

func (c *Cache) keyFields(key Key, err error) map[string]interface{} {
	return logger.Fields(
		logger.FieldTopic, key.Topic,
		logger.FieldVariant, key.Variant,
		logger.FieldError, err.Error(),
	)
}
