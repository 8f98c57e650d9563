package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/logger"
)

const (
	sessionPrefix      = "session:"
	userSessionsPrefix = "user-sessions:"

	// DefaultTTL is the sliding session lifetime: 30 days of
	// inactivity expires both the record and the hash field.
	DefaultTTL = 30 * 24 * time.Hour
)

// Config configures the session store.
type Config struct {
	// TTL is the sliding session lifetime. Defaults to 30 days.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("session: ttl must be positive")
	}
	return nil
}

// Store persists sessions in a key-value store.
type Store struct {
	kv  kvstore.Store
	cfg Config
	log *logger.Logger

	now func() time.Time
}

// NewStore creates a session store over the given key-value store.
func NewStore(kv kvstore.Store, cfg Config, log *logger.Logger) *Store {
	cfg.ApplyDefaults()
	return &Store{
		kv:  kv,
		cfg: cfg,
		log: log.WithComponent("session"),
		now: time.Now,
	}
}

// CreateSession writes the session record and upserts the summary
// field in the user's hash, refreshing the hash TTL. Overwrite
// semantics: creating an id that already exists replaces it and is
// not an error.
func (s *Store) CreateSession(ctx context.Context, id, userID string, device DeviceInfo, ipAddress, location string) error {
	sess := &Session{
		ID:         id,
		UserID:     userID,
		DeviceInfo: device,
		IPAddress:  ipAddress,
		Location:   location,
		LastActive: s.now().UTC(),
	}

	if err := s.writeSession(ctx, sess); err != nil {
		return err
	}
	if err := s.writeSummary(ctx, userID, id, sess.summary()); err != nil {
		return err
	}

	s.log.Debug("session created", logger.Fields(
		logger.FieldSessionID, id,
		logger.FieldUserID, userID,
	))
	return nil
}

// GetSession returns the session record, or absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, bool, error) {
	data, ok, err := s.kv.Get(ctx, sessionPrefix+id)
	if err != nil || !ok {
		return nil, false, err
	}
	sess, err := unmarshalSession(id, data)
	if err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, true, nil
}

// UpdateSessionActivity advances lastActive in both the session record
// and the user's hash field, refreshing the record TTL. No-op when the
// session does not exist.
func (s *Store) UpdateSessionActivity(ctx context.Context, id string) error {
	sess, ok, err := s.GetSession(ctx, id)
	if err != nil || !ok {
		return err
	}

	sess.LastActive = s.now().UTC()
	if err := s.writeSession(ctx, sess); err != nil {
		return err
	}

	// The hash field is updated in place so a listing converges to the
	// same timestamp. Field absence is tolerated: the record is
	// authoritative.
	hashKey := userSessionsPrefix + sess.UserID
	raw, ok, err := s.kv.HGet(ctx, hashKey, id)
	if err != nil || !ok {
		return err
	}
	var sum Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return fmt.Errorf("decode session summary %s: %w", id, err)
	}
	sum.LastActive = sess.LastActive

	data, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.kv.HSet(ctx, hashKey, id, string(data))
}

// GetUserSessions returns every session summary indexed for the user.
func (s *Store) GetUserSessions(ctx context.Context, userID string) (map[string]Summary, error) {
	raw, err := s.kv.HGetAll(ctx, userSessionsPrefix+userID)
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]Summary, len(raw))
	for id, data := range raw {
		var sum Summary
		if err := json.Unmarshal([]byte(data), &sum); err != nil {
			s.log.Warn("skipping undecodable session summary", logger.Fields(
				logger.FieldSessionID, id,
				logger.FieldUserID, userID,
				logger.FieldError, err.Error(),
			))
			continue
		}
		sessions[id] = sum
	}
	return sessions, nil
}

// RemoveSession deletes the session record and its hash field.
// Idempotent.
func (s *Store) RemoveSession(ctx context.Context, userID, id string) error {
	if err := s.kv.Del(ctx, sessionPrefix+id); err != nil {
		return err
	}
	return s.kv.HDel(ctx, userSessionsPrefix+userID, id)
}

// RemoveAllSessions deletes every session entry listed in the user's
// hash, then the hash itself. Individual delete failures do not abort
// the sweep; the first error is returned after all deletes were
// attempted.
func (s *Store) RemoveAllSessions(ctx context.Context, userID string) error {
	hashKey := userSessionsPrefix + userID
	listed, err := s.kv.HGetAll(ctx, hashKey)
	if err != nil {
		return err
	}

	var firstErr error
	for id := range listed {
		if err := s.kv.Del(ctx, sessionPrefix+id); err != nil {
			s.log.Warn("failed to delete session during sweep", logger.Fields(
				logger.FieldSessionID, id,
				logger.FieldUserID, userID,
				logger.FieldError, err.Error(),
			))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := s.kv.Del(ctx, hashKey); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Store) writeSession(ctx context.Context, sess *Session) error {
	data, err := marshalSession(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, sessionPrefix+sess.ID, data, s.cfg.TTL)
}

func (s *Store) writeSummary(ctx context.Context, userID, id string, sum Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	hashKey := userSessionsPrefix + userID
	if err := s.kv.HSet(ctx, hashKey, id, string(data)); err != nil {
		return err
	}
	return s.kv.Expire(ctx, hashKey, s.cfg.TTL)
}
