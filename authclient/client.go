package authclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/sessionkit/clientstate"
	apperrors "github.com/kbukum/sessionkit/errors"
	"github.com/kbukum/sessionkit/httpclient"
	"github.com/kbukum/sessionkit/logger"
	"github.com/kbukum/sessionkit/session"
)

// Config configures the auth client.
type Config struct {
	// BaseURL of the Auth service, e.g. "https://api.example.com".
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("authclient: base_url is required")
	}
	return nil
}

// Client talks to the Auth service and keeps the token pair in
// clientstate in sync with what the service issues.
type Client struct {
	http  *httpclient.Client
	state *clientstate.State
	log   *logger.Logger
}

// New creates an auth client.
func New(cfg Config, state *clientstate.State, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hc, err := httpclient.New(httpclient.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, state: state, log: log.WithComponent("authclient")}, nil
}

type loginRequest struct {
	Email    string             `json:"email"`
	Password string             `json:"password"`
	Device   session.DeviceInfo `json:"device"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Login authenticates and persists the issued token pair. The device
// info is recorded by the Auth service against the new session.
func (c *Client) Login(ctx context.Context, creds Credentials, device session.DeviceInfo) (*User, TokenPair, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Body:   loginRequest{Email: creds.Email, Password: creds.Password, Device: device},
	})
	if err != nil {
		if httpclient.IsAuth(err) {
			return nil, TokenPair{}, apperrors.Unauthorized("invalid credentials")
		}
		return nil, TokenPair{}, err
	}

	var body loginResponse
	if err := resp.JSON(&body); err != nil {
		return nil, TokenPair{}, fmt.Errorf("decode login response: %w", err)
	}

	pair := TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}
	if err := c.state.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, TokenPair{}, err
	}

	c.log.Info("login succeeded", logger.Fields(logger.FieldUserID, body.User.ID))
	return &body.User, pair, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges the stored refresh token for a new pair and
// persists it. Rotation is optional: when the service omits a new
// refresh token the old one stays valid.
func (c *Client) Refresh(ctx context.Context) (TokenPair, error) {
	refresh, ok, err := c.state.RefreshToken(ctx)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok || refresh == "" {
		return TokenPair{}, apperrors.TokenExpired()
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/refresh",
		Body:   refreshRequest{RefreshToken: refresh},
	})
	if err != nil {
		if httpclient.IsAuth(err) {
			return TokenPair{}, apperrors.TokenExpired().WithCause(err)
		}
		return TokenPair{}, err
	}

	var body refreshResponse
	if err := resp.JSON(&body); err != nil {
		return TokenPair{}, fmt.Errorf("decode refresh response: %w", err)
	}

	pair := TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refresh
	}
	if err := c.state.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout invalidates the access token server side and is tolerant of
// the server being unreachable; the caller clears local state either
// way.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.doAuthed(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/logout",
	})
	if err != nil && httpclient.IsConnection(err) {
		c.log.Warn("logout skipped, auth service unreachable", logger.Fields("error", err.Error()))
		return nil
	}
	return err
}

// ListSessions returns the user's sessions as the Auth service sees
// them.
func (c *Client) ListSessions(ctx context.Context) ([]RemoteSession, error) {
	resp, err := c.doAuthed(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/api/user/sessions",
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Sessions []RemoteSession `json:"sessions"`
	}
	if err := resp.JSON(&body); err != nil {
		return nil, fmt.Errorf("decode sessions response: %w", err)
	}
	return body.Sessions, nil
}

// RevokeSession signs out one session.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := c.doAuthed(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   "/api/auth/sessions/" + sessionID,
	})
	return err
}

// RevokeAllSessions signs out every session of the user.
func (c *Client) RevokeAllSessions(ctx context.Context) error {
	_, err := c.doAuthed(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   "/api/auth/sessions",
	})
	return err
}

// doAuthed executes an authenticated request. On a 401 it refreshes
// once and retries once; any further 401 propagates as an auth error.
func (c *Client) doAuthed(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	resp, err := c.doWithToken(ctx, req)
	if err == nil || !httpclient.IsUnauthorized(err) {
		return resp, err
	}

	c.log.Debug("401 received, attempting token refresh")
	if _, refreshErr := c.Refresh(ctx); refreshErr != nil {
		return nil, refreshErr
	}

	resp, err = c.doWithToken(ctx, req)
	if err != nil && httpclient.IsUnauthorized(err) {
		return nil, apperrors.Unauthorized("request rejected after token refresh").WithCause(err)
	}
	return resp, err
}

func (c *Client) doWithToken(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	token, ok, err := c.state.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		return nil, apperrors.Unauthorized("no access token")
	}
	req.Auth = httpclient.BearerAuth(token)
	return c.http.Do(ctx, req)
}
