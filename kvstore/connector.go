package kvstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/kbukum/sessionkit/errors"
	"github.com/kbukum/sessionkit/logger"
)

// State is the connector's connection state.
type State int

const (
	// StateDisconnected means no backend is usable.
	StateDisconnected State = iota
	// StateConnecting means Connect is in progress.
	StateConnecting
	// StateConnected means a backend (primary or fallback) is serving.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Config selects and configures the backend. The backend variant is chosen
// once at construction from explicit configuration, never probed at call
// time.
type Config struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`

	// Fallback permits falling back to the in-process backend when the
	// redis backend is unreachable at connect time or fails at runtime.
	Fallback bool `mapstructure:"fallback"`

	// Redis configures the networked backend. Ignored for Backend "memory".
	Redis RedisConfig `mapstructure:"redis"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "redis":
		c.Redis.ApplyDefaults()
		return c.Redis.Validate()
	default:
		return fmt.Errorf("kvstore backend must be \"memory\" or \"redis\" (got: %s)", c.Backend)
	}
}

// Connector owns the Disconnected → Connecting → Connected state machine
// and presents a single Store regardless of which backend is active. On a
// runtime transport failure it transparently migrates to the in-process
// backend when fallback is permitted; otherwise subsequent operations fail
// with a not-initialized error.
type Connector struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	state    State
	primary  Backend
	fallback *Memory
	active   Backend
}

// NewConnector creates a connector for the configured backend.
func NewConnector(cfg Config, log *logger.Logger) (*Connector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kvstore config: %w", err)
	}

	c := &Connector{cfg: cfg, log: log.WithComponent("kvstore")}

	switch cfg.Backend {
	case "redis":
		primary, err := NewRedis(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		c.primary = primary
		if cfg.Fallback {
			c.fallback = NewMemory(log)
		}
	default:
		c.primary = NewMemory(log)
	}
	return c, nil
}

// Connect establishes the backend connection. Idempotent: a second call on
// a connected connector is a no-op. When the primary backend is
// unreachable and fallback is permitted, the connector comes up on the
// in-process backend; when fallback is not permitted the connection error
// propagates and the connector returns to Disconnected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		return nil
	}
	c.state = StateConnecting

	if err := c.primary.Connect(ctx); err != nil {
		if c.fallback == nil {
			c.state = StateDisconnected
			return err
		}
		c.log.Warn("primary backend unreachable, falling back to in-process store",
			logger.ErrorFields("connect", err))
		_ = c.fallback.Connect(ctx)
		c.active = c.fallback
		c.state = StateConnected
		return nil
	}

	c.active = c.primary
	c.state = StateConnected
	return nil
}

// Disconnect tears down whichever backends were brought up, cancelling
// every pending eviction timer before returning.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}

	var firstErr error
	if err := c.primary.Disconnect(ctx); err != nil {
		firstErr = err
	}
	if c.fallback != nil {
		if err := c.fallback.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.active = nil
	c.state = StateDisconnected
	return firstErr
}

// Connected reports the observable connection state. Never errors.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected && c.active != nil && c.active.Connected()
}

// State returns the connector state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// store returns the active backend, or a not-initialized error before
// Connect or after an unrecovered runtime failure.
func (c *Connector) store(op string) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.active == nil {
		return nil, apperrors.NotInitialized(op)
	}
	return c.active, nil
}

// degrade handles a runtime transport failure on the primary backend:
// migrate to the in-process fallback when permitted, otherwise drop to
// Disconnected. Returns the store to retry on, or nil.
func (c *Connector) degrade(ctx context.Context, op string, cause error) Backend {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == c.fallback {
		return nil
	}
	if c.fallback == nil {
		c.state = StateDisconnected
		c.active = nil
		c.log.Error("backend connection lost, no fallback permitted",
			logger.ErrorFields(op, cause))
		return nil
	}

	c.log.Warn("backend connection lost, falling back to in-process store",
		logger.ErrorFields(op, cause))
	_ = c.fallback.Connect(ctx)
	c.active = c.fallback
	return c.fallback
}

// do runs fn against the active backend, migrating to the fallback and
// retrying once on a transport failure.
func (c *Connector) do(ctx context.Context, op string, fn func(Store) error) error {
	backend, err := c.store(op)
	if err != nil {
		return err
	}
	err = fn(backend)
	if err == nil || !apperrors.IsConnectionFailed(err) {
		return err
	}
	if retry := c.degrade(ctx, op, err); retry != nil {
		return fn(retry)
	}
	return err
}

// --- Store interface ---

// Set stores a value. ttl == 0 clears any existing TTL.
func (c *Connector) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.do(ctx, "set", func(s Store) error {
		return s.Set(ctx, key, value, ttl)
	})
}

// Get retrieves a value.
func (c *Connector) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = c.do(ctx, "get", func(s Store) error {
		value, ok, err = s.Get(ctx, key)
		return err
	})
	return value, ok, err
}

// Del removes a key. Idempotent.
func (c *Connector) Del(ctx context.Context, key string) error {
	return c.do(ctx, "del", func(s Store) error {
		return s.Del(ctx, key)
	})
}

// Expire attaches a TTL to an existing key.
func (c *Connector) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.do(ctx, "expire", func(s Store) error {
		return s.Expire(ctx, key, ttl)
	})
}

// Exists reports whether a key is present.
func (c *Connector) Exists(ctx context.Context, key string) (ok bool, err error) {
	err = c.do(ctx, "exists", func(s Store) error {
		ok, err = s.Exists(ctx, key)
		return err
	})
	return ok, err
}

// Keys returns keys matching pattern.
func (c *Connector) Keys(ctx context.Context, pattern string) (keys []string, err error) {
	err = c.do(ctx, "keys", func(s Store) error {
		keys, err = s.Keys(ctx, pattern)
		return err
	})
	return keys, err
}

// HSet sets a field in the hash at key.
func (c *Connector) HSet(ctx context.Context, key, field, value string) error {
	return c.do(ctx, "hset", func(s Store) error {
		return s.HSet(ctx, key, field, value)
	})
}

// HGet retrieves a hash field.
func (c *Connector) HGet(ctx context.Context, key, field string) (value string, ok bool, err error) {
	err = c.do(ctx, "hget", func(s Store) error {
		value, ok, err = s.HGet(ctx, key, field)
		return err
	})
	return value, ok, err
}

// HGetAll returns all fields of the hash at key.
func (c *Connector) HGetAll(ctx context.Context, key string) (fields map[string]string, err error) {
	err = c.do(ctx, "hgetall", func(s Store) error {
		fields, err = s.HGetAll(ctx, key)
		return err
	})
	return fields, err
}

// HDel removes a field from a hash.
func (c *Connector) HDel(ctx context.Context, key, field string) error {
	return c.do(ctx, "hdel", func(s Store) error {
		return s.HDel(ctx, key, field)
	})
}

// compile-time interface check
var _ Backend = (*Connector)(nil)
