package httpclient

import "net/http"

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer uses Bearer token authentication.
	AuthBearer
	// AuthCustom uses a custom authentication function.
	AuthCustom
)

// AuthConfig configures request authentication.
type AuthConfig struct {
	// Type is the authentication method.
	Type AuthType
	// Token is the static bearer token (AuthBearer).
	Token string
	// TokenFunc, when set, is called per request and overrides Token.
	// Lets callers rotate tokens without rebuilding the client.
	TokenFunc func() string
	// Apply is a custom function to modify the request (AuthCustom).
	Apply func(*http.Request)
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// BearerAuthFunc creates a bearer auth config whose token is resolved
// per request.
func BearerAuthFunc(fn func() string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, TokenFunc: fn}
}

// CustomAuth creates a custom auth config with a request modifier.
func CustomAuth(fn func(*http.Request)) *AuthConfig {
	return &AuthConfig{Type: AuthCustom, Apply: fn}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case AuthBearer:
		token := a.Token
		if a.TokenFunc != nil {
			token = a.TokenFunc()
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case AuthCustom:
		if a.Apply != nil {
			a.Apply(req)
		}
	}
}
