// Package authclient is the client for the external Auth service.
//
// All authenticated calls carry a bearer token from clientstate. A 401
// response triggers exactly one refresh-and-retry; a second 401, or a
// refresh failure, propagates as an auth error. 403 never triggers a
// refresh.
package authclient

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// User is the authenticated principal returned by login.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Credentials identify a user at login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair holds the opaque access/refresh tokens issued by the Auth
// service.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AccessExpiry reads the exp claim of the access token without
// verifying the signature. Verification is the Auth service's job;
// this is introspection only, used to schedule refreshes.
func (p TokenPair) AccessExpiry() (time.Time, error) {
	claims := gojwt.RegisteredClaims{}
	parser := gojwt.NewParser()
	if _, _, err := parser.ParseUnverified(p.AccessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// RemoteSession is a session as listed by the Auth service.
type RemoteSession struct {
	ID         string `json:"id"`
	Device     string `json:"device"`
	LastActive string `json:"lastActive"`
	IPAddress  string `json:"ipAddress"`
	Location   string `json:"location"`
}
