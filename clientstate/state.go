// Package clientstate persists the client-side session slots: token
// pair, active session id, and the best-effort location metadata
// captured at session creation. It is a thin layer over a
// kvstore.Store so the slots survive process restarts when the store
// is backed by redis.
package clientstate

import (
	"context"

	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/logger"
)

// Slot keys. One value per key, no TTL: the slots live until cleared.
const (
	keyAccessToken     = "client:access-token"
	keyRefreshToken    = "client:refresh-token"
	keySessionID       = "client:session-id"
	keySessionLocation = "client:session-location"
	keySessionIP       = "client:session-ip"
)

// State reads and writes the client slots.
type State struct {
	store kvstore.Store
	log   *logger.Logger
}

// New creates a State over the given store.
func New(store kvstore.Store, log *logger.Logger) *State {
	return &State{store: store, log: log.WithComponent("clientstate")}
}

// SetTokens stores the access/refresh token pair in one call so a
// refresh never leaves the pair half-written across a crash boundary
// longer than necessary.
func (s *State) SetTokens(ctx context.Context, access, refresh string) error {
	if err := s.store.Set(ctx, keyAccessToken, access, 0); err != nil {
		return err
	}
	return s.store.Set(ctx, keyRefreshToken, refresh, 0)
}

// AccessToken returns the stored access token, if any.
func (s *State) AccessToken(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, keyAccessToken)
}

// RefreshToken returns the stored refresh token, if any.
func (s *State) RefreshToken(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, keyRefreshToken)
}

// SetSessionID stores the active session id.
func (s *State) SetSessionID(ctx context.Context, id string) error {
	return s.store.Set(ctx, keySessionID, id, 0)
}

// SessionID returns the active session id, if any.
func (s *State) SessionID(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, keySessionID)
}

// SetSessionLocation stores the location captured at session creation.
func (s *State) SetSessionLocation(ctx context.Context, location string) error {
	return s.store.Set(ctx, keySessionLocation, location, 0)
}

// SessionLocation returns the stored location, if any.
func (s *State) SessionLocation(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, keySessionLocation)
}

// SetSessionIP stores the public IP captured at session creation.
func (s *State) SetSessionIP(ctx context.Context, ip string) error {
	return s.store.Set(ctx, keySessionIP, ip, 0)
}

// SessionIP returns the stored public IP, if any.
func (s *State) SessionIP(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, keySessionIP)
}

// Clear removes every slot. Called on logout and on an irrecoverable
// refresh failure. Best effort: the first error is returned but the
// remaining slots are still attempted.
func (s *State) Clear(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{keyAccessToken, keyRefreshToken, keySessionID, keySessionLocation, keySessionIP} {
		if err := s.store.Del(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		s.log.Warn("failed to clear client state", logger.ErrorFields("clear", firstErr))
	}
	return firstErr
}
