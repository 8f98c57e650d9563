// Package location resolves the public IP and a coarse human-readable
// location for session metadata. Lookups are best effort: any failure
// yields the "unknown" placeholders and is never surfaced as an error,
// so session creation cannot be blocked by a geo endpoint outage.
package location

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/sessionkit/httpclient"
	"github.com/kbukum/sessionkit/logger"
)

// Unknown is the placeholder used when resolution fails.
const Unknown = "unknown"

const (
	defaultEndpoint = "https://ipapi.co/json"
	defaultTimeout  = 3 * time.Second
)

// Config configures the lookup endpoint.
type Config struct {
	// Endpoint returns a JSON document with ip/city/country fields.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Timeout bounds a single lookup. Kept short: this runs inline
	// during session creation.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Info is the result of a lookup.
type Info struct {
	IP       string
	Location string
}

// Resolver performs best-effort IP and location lookups.
type Resolver struct {
	client *httpclient.Client
	log    *logger.Logger
}

// New creates a Resolver.
func New(cfg Config, log *logger.Logger) (*Resolver, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.Endpoint,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Resolver{client: client, log: log.WithComponent("location")}, nil
}

// Lookup resolves the caller's public IP and location. It never
// returns an error: failures degrade to the Unknown placeholders.
func (r *Resolver) Lookup(ctx context.Context) Info {
	info := Info{IP: Unknown, Location: Unknown}

	resp, err := r.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/"})
	if err != nil {
		r.log.Debug("location lookup failed", logger.ErrorFields("lookup", err))
		return info
	}

	var body struct {
		IP      string `json:"ip"`
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country_name"`
	}
	if err := resp.JSON(&body); err != nil {
		r.log.Debug("location response unreadable", logger.ErrorFields("lookup", err))
		return info
	}

	if body.IP != "" {
		info.IP = body.IP
	}
	if loc := formatLocation(body.City, body.Region, body.Country); loc != "" {
		info.Location = loc
	}
	return info
}

func formatLocation(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, ", ")
}
