package scheduler

import (
	"context"
	"fmt"
	"net/http"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/sessionkit/httpclient"
)

// HTTPPinger posts the alive notification to the activity endpoint.
type HTTPPinger struct {
	client *httpclient.Client
	path   string
}

// NewHTTPPinger creates a pinger over the given client. path is the
// activity endpoint, e.g. "/api/session/activity".
func NewHTTPPinger(client *httpclient.Client, path string) *HTTPPinger {
	return &HTTPPinger{client: client, path: path}
}

// Ping sends the notification. Best effort: callers observe the error
// for logging only.
func (p *HTTPPinger) Ping(ctx context.Context, sessionID string) error {
	_, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   p.path,
		Body:   map[string]string{"sessionId": sessionID},
	})
	return err
}

// subjectOf reads the sub claim of a JWT without verification.
func subjectOf(token string) (string, error) {
	claims := gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	return claims.Subject, nil
}
