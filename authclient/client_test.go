package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/sessionkit/clientstate"
	apperrors "github.com/kbukum/sessionkit/errors"
	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/logger"
	"github.com/kbukum/sessionkit/session"
)

var testDevice = session.DeviceInfo{
	UserAgent: "Mozilla/5.0",
	Platform:  "Linux x86_64",
	Language:  "en-US",
}

func newTestState(t *testing.T) *clientstate.State {
	t.Helper()
	mem := kvstore.NewMemory(logger.Nop())
	if err := mem.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { mem.Disconnect(context.Background()) })
	return clientstate.New(mem, logger.Nop())
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *clientstate.State) {
	t.Helper()
	state := newTestState(t)
	client, err := New(Config{BaseURL: srv.URL}, state, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, state
}

func bearerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req loginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "a@b.c" || req.Device.Platform != "Linux x86_64" {
			t.Errorf("unexpected login payload: %+v", req)
		}
		json.NewEncoder(w).Encode(loginResponse{
			AccessToken:  "acc-1",
			RefreshToken: "ref-1",
			User:         User{ID: "u1", Email: "a@b.c", Role: "learner"},
		})
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	user, pair, err := client.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}, testDevice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "u1" || pair.AccessToken != "acc-1" {
		t.Errorf("unexpected result: %+v %+v", user, pair)
	}

	// Tokens persisted.
	access, _, _ := state.AccessToken(context.Background())
	refresh, _, _ := state.RefreshToken(context.Background())
	if access != "acc-1" || refresh != "ref-1" {
		t.Errorf("tokens not persisted: %q %q", access, refresh)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, _, err := client.Login(context.Background(), Credentials{Email: "a@b.c", Password: "nope"}, testDevice)
	if !apperrors.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "ref-old" {
			t.Errorf("expected stored refresh token, got %q", req.RefreshToken)
		}
		json.NewEncoder(w).Encode(refreshResponse{AccessToken: "acc-new", RefreshToken: "ref-new"})
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc-old", "ref-old")

	pair, err := client.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken != "acc-new" || pair.RefreshToken != "ref-new" {
		t.Errorf("unexpected pair: %+v", pair)
	}
}

func TestRefreshWithoutRotationKeepsOldRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(refreshResponse{AccessToken: "acc-new"})
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc-old", "ref-old")

	if _, err := client.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	refresh, _, _ := state.RefreshToken(ctx)
	if refresh != "ref-old" {
		t.Errorf("refresh token should be kept, got %q", refresh)
	}
}

func TestRefreshWithoutStoredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, err := client.Refresh(context.Background())
	if !apperrors.HasCode(err, apperrors.ErrCodeTokenExpired) {
		t.Fatalf("expected token expired, got %v", err)
	}
}

func TestRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	_, err := client.Refresh(ctx)
	if !apperrors.HasCode(err, apperrors.ErrCodeTokenExpired) {
		t.Fatalf("expected token expired, got %v", err)
	}
}

func TestAuthedCallRefreshesOnceOn401(t *testing.T) {
	var listCalls, refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/sessions":
			listCalls.Add(1)
			if bearerOf(r) != "acc-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string][]RemoteSession{
				"sessions": {{ID: "s1", Device: "laptop"}},
			})
		case "/api/auth/refresh":
			refreshCalls.Add(1)
			json.NewEncoder(w).Encode(refreshResponse{AccessToken: "acc-new", RefreshToken: "ref-new"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc-stale", "ref-1")

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Errorf("unexpected sessions: %+v", sessions)
	}
	if refreshCalls.Load() != 1 {
		t.Errorf("expected exactly one refresh, got %d", refreshCalls.Load())
	}
	if listCalls.Load() != 2 {
		t.Errorf("expected exactly one retry, got %d list calls", listCalls.Load())
	}
}

func TestAuthedCallSecond401Propagates(t *testing.T) {
	var listCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/sessions":
			listCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/auth/refresh":
			json.NewEncoder(w).Encode(refreshResponse{AccessToken: "acc-new"})
		}
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	_, err := client.ListSessions(ctx)
	if !apperrors.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if listCalls.Load() != 2 {
		t.Errorf("expected exactly two attempts, got %d", listCalls.Load())
	}
}

func TestAuthedCallRefreshFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	_, err := client.ListSessions(ctx)
	if !apperrors.HasCode(err, apperrors.ErrCodeTokenExpired) {
		t.Fatalf("expected token expired from failed refresh, got %v", err)
	}
}

func TestAuthedCallWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, err := client.ListSessions(context.Background())
	if !apperrors.IsAuth(err) {
		t.Fatalf("expected auth error without token, got %v", err)
	}
}

func TestRevokeSession(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	if err := client.RevokeSession(ctx, "sess-42"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if gotPath != "/api/auth/sessions/sess-42" || gotMethod != http.MethodDelete {
		t.Errorf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	if err := client.RevokeAllSessions(ctx); err != nil {
		t.Fatalf("RevokeAllSessions: %v", err)
	}
	if gotPath != "/api/auth/sessions" || gotMethod != http.MethodDelete {
		t.Errorf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestLogout(t *testing.T) {
	var gotBearer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBearer = bearerOf(r)
	}))
	defer srv.Close()

	client, state := newTestClient(t, srv)
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if gotBearer != "acc" {
		t.Errorf("expected bearer on logout, got %q", gotBearer)
	}
}

func TestLogoutUnreachableServer(t *testing.T) {
	state := newTestState(t)
	client, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, state, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	state.SetTokens(ctx, "acc", "ref")

	if err := client.Logout(ctx); err != nil {
		t.Errorf("expected nil when the auth service is unreachable, got %v", err)
	}
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: gojwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	pair := TokenPair{AccessToken: signed}
	got, err := pair.AccessExpiry()
	if err != nil {
		t.Fatalf("AccessExpiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expected %v, got %v", exp, got)
	}
}

func TestAccessExpiryMalformed(t *testing.T) {
	pair := TokenPair{AccessToken: "not-a-jwt"}
	if _, err := pair.AccessExpiry(); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
