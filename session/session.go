// Package session implements session CRUD and per-user session
// indexing on kvstore primitives.
//
// Each session lives in two places: a full record at session:{id} and
// a summary field inside the user's hash at user-sessions:{userId}.
// Both carry a 30-day sliding TTL refreshed on activity. The two keys
// are not updated atomically; readers may observe a brief mismatch
// window between them.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeviceInfo describes the client device a session was created from.
type DeviceInfo struct {
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
	Language  string `json:"language"`
}

// Session is the full session record stored at session:{id}.
type Session struct {
	ID         string     `json:"-"`
	UserID     string     `json:"userId"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
	IPAddress  string     `json:"ipAddress"`
	Location   string     `json:"location,omitempty"`
	LastActive time.Time  `json:"lastActive"`
}

// Summary is the per-session field stored in the user's hash. It
// carries everything a session listing needs without a second lookup.
type Summary struct {
	DeviceInfo DeviceInfo `json:"deviceInfo"`
	IPAddress  string     `json:"ipAddress"`
	Location   string     `json:"location,omitempty"`
	LastActive time.Time  `json:"lastActive"`
}

// NewSessionID generates a globally unique session id.
func NewSessionID() string {
	return uuid.NewString()
}

func (s *Session) summary() Summary {
	return Summary{
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		Location:   s.Location,
		LastActive: s.LastActive,
	}
}

func marshalSession(s *Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalSession(id, data string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}
