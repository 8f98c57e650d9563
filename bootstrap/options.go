package bootstrap

import (
	"time"

	"github.com/kbukum/sessionkit/logger"
	"github.com/kbukum/sessionkit/session"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger           *logger.Logger
	gracefulTimeout  *time.Duration
	device           session.DeviceInfo
	onSessionExpired func()
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, the logger is built from
// the config's Logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithDevice sets the device info recorded on session creation. If not
// set, one is derived from the service name, version, and OS.
func WithDevice(d session.DeviceInfo) Option {
	return func(o *appOptions) {
		o.device = d
	}
}

// WithOnSessionExpired sets the callback invoked when a production-mode
// refresh failure ends the session.
func WithOnSessionExpired(fn func()) Option {
	return func(o *appOptions) {
		o.onSessionExpired = fn
	}
}
