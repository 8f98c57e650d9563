package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/kbukum/sessionkit/errors"
	"github.com/kbukum/sessionkit/logger"
)

// Redis is the networked backend built on go-redis. TTL expiry is
// delegated to the server's native expiry.
type Redis struct {
	cfg RedisConfig
	log *logger.Logger

	mu        sync.Mutex
	rdb       *goredis.Client
	connected bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `mapstructure:"addr"`

	// Username is the Redis ACL username.
	Username string `mapstructure:"username"`

	// Password is the Redis server password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `mapstructure:"pool_size"`

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int `mapstructure:"min_idle_conns"`

	// DialTimeout is the timeout for establishing new connections (e.g. "5s").
	DialTimeout string `mapstructure:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads (e.g. "3s").
	ReadTimeout string `mapstructure:"read_timeout"`

	// WriteTimeout is the timeout for socket writes (e.g. "3s").
	WriteTimeout string `mapstructure:"write_timeout"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
}

// Validate checks that required fields are present and parseable.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial_timeout %q: %w", c.DialTimeout, err)
	}
	if _, err := time.ParseDuration(c.ReadTimeout); err != nil {
		return fmt.Errorf("invalid read_timeout %q: %w", c.ReadTimeout, err)
	}
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout %q: %w", c.WriteTimeout, err)
	}
	return nil
}

// NewRedis creates a Redis backend with the given configuration.
func NewRedis(cfg RedisConfig, log *logger.Logger) (*Redis, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	return &Redis{cfg: cfg, log: log.WithComponent("kvstore.redis")}, nil
}

// Connect establishes and verifies the connection. Idempotent: a second
// call on a connected backend is a no-op.
func (r *Redis) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected {
		return nil
	}

	dialTimeout, _ := time.ParseDuration(r.cfg.DialTimeout)
	readTimeout, _ := time.ParseDuration(r.cfg.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(r.cfg.WriteTimeout)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         r.cfg.Addr,
		Username:     r.cfg.Username,
		Password:     r.cfg.Password,
		DB:           r.cfg.DB,
		PoolSize:     r.cfg.PoolSize,
		MinIdleConns: r.cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return apperrors.ConnectionFailed("redis").WithCause(err)
	}

	r.rdb = rdb
	r.connected = true
	r.log.Info("connected to redis", logger.Fields("addr", r.cfg.Addr, "db", r.cfg.DB))
	return nil
}

// Disconnect closes the connection. Safe to call multiple times. The
// client is closed whenever one exists: a runtime transport error clears
// the connected flag but keeps the pool alive until teardown.
func (r *Redis) Disconnect(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	if r.rdb == nil {
		return nil
	}
	err := r.rdb.Close()
	r.rdb = nil
	return err
}

// Connected reports the observable connection state.
func (r *Redis) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// markDisconnected flips the state after a runtime error so the connector
// can fall back to the in-process backend.
func (r *Redis) markDisconnected() {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
}

// client returns the live go-redis client or a not-initialized error.
func (r *Redis) client(op string) (*goredis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected || r.rdb == nil {
		return nil, apperrors.NotInitialized(op)
	}
	return r.rdb, nil
}

// wrap classifies a go-redis error, marking the backend disconnected on
// transport-level failures.
func (r *Redis) wrap(op string, err error) error {
	if err == nil || errors.Is(err, goredis.Nil) {
		return nil
	}
	if isTransportError(err) {
		r.markDisconnected()
		return apperrors.ConnectionFailed("redis").WithCause(err).WithDetail("operation", op)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

// isTransportError reports whether err indicates a lost connection rather
// than a command-level failure.
func isTransportError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var redisErr goredis.Error
	if errors.As(err, &redisErr) {
		// Command-level errors (WRONGTYPE etc.) come back as goredis.Error.
		return false
	}
	return true
}

// Set stores a value. ttl == 0 persists the key, clearing any prior TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	rdb, err := r.client("set")
	if err != nil {
		return err
	}
	return r.wrap("set", rdb.Set(ctx, key, value, ttl).Err())
}

// Get retrieves a value. redis.Nil is translated to absent, never an error.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	rdb, err := r.client("get")
	if err != nil {
		return "", false, err
	}
	value, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.wrap("get", err)
	}
	return value, true, nil
}

// Del removes a key. Idempotent.
func (r *Redis) Del(ctx context.Context, key string) error {
	rdb, err := r.client("del")
	if err != nil {
		return err
	}
	return r.wrap("del", rdb.Del(ctx, key).Err())
}

// Expire attaches a TTL to an existing key. No-op if the key is absent.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	rdb, err := r.client("expire")
	if err != nil {
		return err
	}
	return r.wrap("expire", rdb.Expire(ctx, key, ttl).Err())
}

// Exists reports whether a key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	rdb, err := r.client("exists")
	if err != nil {
		return false, err
	}
	n, err := rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, r.wrap("exists", err)
	}
	return n == 1, nil
}

// Keys returns keys matching pattern (single trailing '*' wildcard).
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	rdb, err := r.client("keys")
	if err != nil {
		return nil, err
	}
	keys, err := rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, r.wrap("keys", err)
	}
	return keys, nil
}

// HSet sets a field in the hash at key.
func (r *Redis) HSet(ctx context.Context, key, field, value string) error {
	rdb, err := r.client("hset")
	if err != nil {
		return err
	}
	return r.wrap("hset", rdb.HSet(ctx, key, field, value).Err())
}

// HGet retrieves a hash field.
func (r *Redis) HGet(ctx context.Context, key, field string) (string, bool, error) {
	rdb, err := r.client("hget")
	if err != nil {
		return "", false, err
	}
	value, err := rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.wrap("hget", err)
	}
	return value, true, nil
}

// HGetAll returns all fields of the hash at key.
func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rdb, err := r.client("hgetall")
	if err != nil {
		return nil, err
	}
	fields, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, r.wrap("hgetall", err)
	}
	return fields, nil
}

// HDel removes a field from a hash.
func (r *Redis) HDel(ctx context.Context, key, field string) error {
	rdb, err := r.client("hdel")
	if err != nil {
		return err
	}
	return r.wrap("hdel", rdb.HDel(ctx, key, field).Err())
}

// compile-time interface check
var _ Backend = (*Redis)(nil)
