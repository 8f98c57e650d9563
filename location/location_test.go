package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kbukum/sessionkit/logger"
)

func TestLookupSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ip":"203.0.113.7","city":"Berlin","country_name":"Germany"}`))
	}))
	defer srv.Close()

	resolver, err := New(Config{Endpoint: srv.URL}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	info := resolver.Lookup(context.Background())
	if info.IP != "203.0.113.7" {
		t.Errorf("expected ip, got %q", info.IP)
	}
	if info.Location != "Berlin, Germany" {
		t.Errorf("expected 'Berlin, Germany', got %q", info.Location)
	}
}

func TestLookupEndpointDown(t *testing.T) {
	resolver, err := New(Config{Endpoint: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	info := resolver.Lookup(context.Background())
	if info.IP != Unknown || info.Location != Unknown {
		t.Errorf("expected unknown placeholders, got %+v", info)
	}
}

func TestLookupMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	resolver, _ := New(Config{Endpoint: srv.URL}, logger.Nop())
	info := resolver.Lookup(context.Background())
	if info.IP != Unknown || info.Location != Unknown {
		t.Errorf("expected unknown placeholders, got %+v", info)
	}
}

func TestLookupPartialFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"198.51.100.2"}`))
	}))
	defer srv.Close()

	resolver, _ := New(Config{Endpoint: srv.URL}, logger.Nop())
	info := resolver.Lookup(context.Background())
	if info.IP != "198.51.100.2" {
		t.Errorf("expected ip, got %q", info.IP)
	}
	if info.Location != Unknown {
		t.Errorf("expected unknown location, got %q", info.Location)
	}
}
