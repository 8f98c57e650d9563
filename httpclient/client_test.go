package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/sessionkit/resilience"
)

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"123"}`))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/users/123"})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected success, got %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := resp.JSON(&out); err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if out.ID != "123" {
		t.Errorf("expected id 123, got %q", out.ID)
	}
}

func TestClientJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, _ := New(Config{BaseURL: srv.URL})
	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/things",
		Body:   map[string]string{"name": "x"},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestClientBearerAuth(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client, _ := New(Config{BaseURL: srv.URL, Auth: BearerAuth("tok-1")})
	client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if got != "Bearer tok-1" {
		t.Errorf("expected bearer header, got %q", got)
	}
}

func TestClientBearerAuthFunc(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	token := "first"
	client, _ := New(Config{BaseURL: srv.URL, Auth: BearerAuthFunc(func() string { return token })})

	client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	token = "second"
	client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})

	if len(got) != 2 || got[0] != "Bearer first" || got[1] != "Bearer second" {
		t.Errorf("expected rotated tokens, got %v", got)
	}
}

func TestClientRequestAuthOverride(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client, _ := New(Config{BaseURL: srv.URL, Auth: BearerAuth("client-level")})
	client.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/",
		Auth:   BearerAuth("request-level"),
	})
	if got != "Bearer request-level" {
		t.Errorf("expected request-level auth to win, got %q", got)
	}
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusUnauthorized, IsUnauthorized, "401 unauthorized"},
		{http.StatusForbidden, IsAuth, "403 auth"},
		{http.StatusNotFound, IsNotFound, "404 not found"},
		{http.StatusInternalServerError, IsServerError, "500 server"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte("nope"))
			}))
			defer srv.Close()

			client, _ := New(Config{BaseURL: srv.URL})
			resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
			if err == nil {
				t.Fatal("expected classified error")
			}
			if !tc.check(err) {
				t.Errorf("classification check failed for %v", err)
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Errorf("expected response alongside error")
			}
		})
	}
}

func Test403IsNotUnauthorized(t *testing.T) {
	err := ClassifyStatusCode(403, nil)
	if !IsAuth(err) {
		t.Error("403 should classify as auth")
	}
	if IsUnauthorized(err) {
		t.Error("403 must not count as unauthorized")
	}
}

func TestClientConnectionError(t *testing.T) {
	client, _ := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("connection errors should be retryable")
	}
}

func TestClientRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	client, _ := New(Config{BaseURL: srv.URL, Retry: retry})

	resp, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if string(resp.Body) != "ok" || calls.Load() != 3 {
		t.Errorf("expected 3 calls and ok body, got %d calls, %q", calls.Load(), resp.Body)
	}
}

func TestClientNoRetryOn404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	client, _ := New(Config{BaseURL: srv.URL, Retry: retry})

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 must not retry, got %d calls", calls.Load())
	}
}

func TestClientBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := New(Config{
		BaseURL: srv.URL,
		Breaker: &resilience.BreakerConfig{Name: "test", MaxFailures: 2, CoolDown: time.Minute},
	})

	ctx := context.Background()
	client.Do(ctx, Request{Method: http.MethodGet, Path: "/"})
	client.Do(ctx, Request{Method: http.MethodGet, Path: "/"})

	_, err := client.Do(ctx, Request{Method: http.MethodGet, Path: "/"})
	if err != resilience.ErrBreakerOpen {
		t.Fatalf("expected open breaker, got %v", err)
	}
}
