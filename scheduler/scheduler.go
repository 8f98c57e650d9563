// Package scheduler owns the periodic session behaviors: the token
// refresh loop, throttled activity recording, and the keep-alive
// heartbeat.
//
// The scheduler moves through three states. Inactive: no authenticated
// session, no timers. Active: refresh loop and activity tracking both
// running. Degraded: activity tracking disabled after repeated store
// failures, refresh loop still running. Entering Inactive always
// cancels every timer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/sessionkit/authclient"
	"github.com/kbukum/sessionkit/clientstate"
	"github.com/kbukum/sessionkit/location"
	"github.com/kbukum/sessionkit/logger"
	"github.com/kbukum/sessionkit/resilience"
	"github.com/kbukum/sessionkit/session"
)

// State is the scheduler lifecycle state.
type State int

const (
	// StateInactive means no authenticated session; nothing runs.
	StateInactive State = iota
	// StateActive means both loops are running.
	StateActive
	// StateDegraded means activity tracking is disabled but the
	// refresh loop still runs.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Signal is an interaction signal kind.
type Signal string

// Interaction signals that feed the throttled activity recorder.
const (
	SignalPointer Signal = "pointer"
	SignalKey     Signal = "key"
	SignalClick   Signal = "click"
	SignalTouch   Signal = "touch"
	SignalScroll  Signal = "scroll"
	SignalFocus   Signal = "focus"
)

// Config configures the scheduler intervals and operating mode.
type Config struct {
	// RefreshInterval is the token refresh period. Defaults to 15m.
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`
	// ActivityWindow throttles activity recording: at most one record
	// per window however many signals arrive. Defaults to 60s.
	ActivityWindow time.Duration `yaml:"activity_window" mapstructure:"activity_window"`
	// HeartbeatInterval is the unconditional keep-alive record period.
	// Defaults to 5m.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	// FailureThreshold is the number of consecutive store failures
	// before activity tracking is disabled. Defaults to 3.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	// Production selects strict refresh failure handling and enables
	// the activity ping. Off, refresh failures are logged only, to
	// support offline and demo operation.
	Production bool `yaml:"production" mapstructure:"production"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 15 * time.Minute
	}
	if c.ActivityWindow <= 0 {
		c.ActivityWindow = 60 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Minute
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 || c.ActivityWindow <= 0 || c.HeartbeatInterval <= 0 {
		return fmt.Errorf("scheduler: intervals must be positive")
	}
	return nil
}

// Refresher refreshes the token pair. *authclient.Client implements it.
type Refresher interface {
	Refresh(ctx context.Context) (authclient.TokenPair, error)
}

// Pinger forwards the lightweight alive notification.
type Pinger interface {
	Ping(ctx context.Context, sessionID string) error
}

// Locator resolves best-effort session metadata.
// *location.Resolver implements it.
type Locator interface {
	Lookup(ctx context.Context) location.Info
}

// Deps are the scheduler's collaborators. Sessions, Auth, and Client
// are required; the rest are optional.
type Deps struct {
	Sessions *session.Store
	Auth     Refresher
	Client   *clientstate.State
	Location Locator
	Ping     Pinger
	// Device describes the running client, recorded on session
	// creation.
	Device session.DeviceInfo
	// OnSessionExpired is invoked when a production-mode refresh
	// failure ends the session. Called after local auth state is
	// cleared, outside any scheduler lock.
	OnSessionExpired func()
}

// Scheduler drives the refresh and activity loops.
type Scheduler struct {
	cfg  Config
	deps Deps
	log  *logger.Logger

	breaker *resilience.Breaker

	mu         sync.Mutex
	state      State
	lastRecord time.Time
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	now func() time.Time
}

// New creates a scheduler in the Inactive state.
func New(cfg Config, deps Deps, log *logger.Logger) (*Scheduler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Sessions == nil || deps.Auth == nil || deps.Client == nil {
		return nil, fmt.Errorf("scheduler: sessions, auth, and client state are required")
	}

	s := &Scheduler{
		cfg:   cfg,
		deps:  deps,
		log:   log.WithComponent("scheduler"),
		state: StateInactive,
		now:   time.Now,
	}
	s.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		Name:        "activity-tracking",
		MaxFailures: cfg.FailureThreshold,
		// CoolDown 0: once tripped, tracking stays off for the
		// remainder of the session.
		OnStateChange: s.onBreakerChange,
	})
	return s, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves the scheduler to Active and launches both loops.
// Idempotent: a second Start while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInactive {
		s.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.state = StateActive
	s.breaker.Reset()
	s.lastRecord = time.Time{}

	s.wg.Add(2)
	go s.refreshLoop(loopCtx)
	go s.heartbeatLoop(loopCtx)
	s.mu.Unlock()

	s.log.Info("scheduler started", logger.Fields(logger.FieldState, StateActive.String()))
	return nil
}

// Stop cancels every timer and returns the scheduler to Inactive.
// Idempotent; blocks until both loops have exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateInactive {
		s.mu.Unlock()
		return
	}
	s.state = StateInactive
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped", logger.Fields(logger.FieldState, StateInactive.String()))
}

// Signal feeds an interaction signal into the throttled recorder. At
// most one underlying record call executes per activity window,
// however many signals arrive. Never blocks.
func (s *Scheduler) Signal(kind Signal) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if !s.lastRecord.IsZero() && now.Sub(s.lastRecord) < s.cfg.ActivityWindow {
		s.mu.Unlock()
		return
	}
	s.lastRecord = now
	// Add under the lock so a concurrent Stop cannot start waiting
	// between the state check and the Add.
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.record(context.Background(), string(kind))
	}()
}

// refreshLoop invokes the Auth refresh every RefreshInterval.
func (s *Scheduler) refreshLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.deps.Auth.Refresh(ctx); err != nil {
				if s.handleRefreshFailure(ctx, err) {
					return
				}
			}
		}
	}
}

// handleRefreshFailure reports whether the loop should exit.
func (s *Scheduler) handleRefreshFailure(ctx context.Context, err error) bool {
	if !s.cfg.Production {
		s.log.Warn("token refresh failed, continuing in non-production mode",
			logger.ErrorFields("refresh", err))
		return false
	}

	s.log.Error("token refresh failed, ending session", logger.ErrorFields("refresh", err))
	_ = s.deps.Client.Clear(ctx)

	// Stop must run off this goroutine: it waits for the loops.
	go func() {
		s.Stop()
		if s.deps.OnSessionExpired != nil {
			s.deps.OnSessionExpired()
		}
	}()
	return true
}

// heartbeatLoop records activity unconditionally every
// HeartbeatInterval, keeping long-idle sessions alive.
func (s *Scheduler) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.record(ctx, "heartbeat")
		}
	}
}

// record performs one activity record through the breaker.
func (s *Scheduler) record(ctx context.Context, cause string) {
	err := s.breaker.Do(func() error {
		return s.recordOnce(ctx)
	})
	if err != nil && err != resilience.ErrBreakerOpen {
		s.log.Warn("activity record failed", logger.Fields(
			logger.FieldOperation, cause,
			logger.FieldError, err.Error(),
		))
	}
}

// recordOnce resolves the session id from client state, creates the
// session on first activity, and updates its timestamp afterwards.
// The alive ping is dispatched fire-and-forget in production mode.
func (s *Scheduler) recordOnce(ctx context.Context) error {
	id, ok, err := s.deps.Client.SessionID(ctx)
	if err != nil {
		return err
	}
	if !ok || id == "" {
		id = session.NewSessionID()
		if err := s.deps.Client.SetSessionID(ctx, id); err != nil {
			return err
		}
	}

	_, exists, err := s.deps.Sessions.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if !exists {
		if err := s.createSession(ctx, id); err != nil {
			return err
		}
	} else if err := s.deps.Sessions.UpdateSessionActivity(ctx, id); err != nil {
		return err
	}

	if s.cfg.Production && s.deps.Ping != nil {
		s.dispatchPing(id)
	}
	return nil
}

// createSession writes a new session with best-effort metadata. The
// user id comes from client state via the stored session location
// flow; metadata failures degrade to placeholders and never block.
func (s *Scheduler) createSession(ctx context.Context, id string) error {
	ip, loc := location.Unknown, location.Unknown
	if cached, ok, _ := s.deps.Client.SessionIP(ctx); ok && cached != "" {
		ip = cached
	}
	if cached, ok, _ := s.deps.Client.SessionLocation(ctx); ok && cached != "" {
		loc = cached
	}
	if (ip == location.Unknown || loc == location.Unknown) && s.deps.Location != nil {
		info := s.deps.Location.Lookup(ctx)
		if ip == location.Unknown {
			ip = info.IP
		}
		if loc == location.Unknown {
			loc = info.Location
		}
		// Remember for the next session of this client.
		_ = s.deps.Client.SetSessionIP(ctx, ip)
		_ = s.deps.Client.SetSessionLocation(ctx, loc)
	}

	userID := s.userID(ctx)
	return s.deps.Sessions.CreateSession(ctx, id, userID, s.deps.Device, ip, loc)
}

// userID extracts the subject of the stored access token. Introspection
// only; an unreadable token yields an empty owner, which still records
// activity.
func (s *Scheduler) userID(ctx context.Context) string {
	token, ok, err := s.deps.Client.AccessToken(ctx)
	if err != nil || !ok {
		return ""
	}
	sub, err := subjectOf(token)
	if err != nil {
		return ""
	}
	return sub
}

// dispatchPing forwards the alive notification without awaiting it.
// The result is observed for logging only.
func (s *Scheduler) dispatchPing(sessionID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.deps.Ping.Ping(ctx, sessionID); err != nil {
			s.log.Debug("activity ping failed", logger.ErrorFields("ping", err))
		}
	}()
}

// onBreakerChange moves Active to Degraded when tracking trips. The
// single warning required on degradation is emitted here.
func (s *Scheduler) onBreakerChange(name string, from, to resilience.BreakerState) {
	if to != resilience.BreakerOpen {
		return
	}
	s.log.Warn("activity tracking disabled after repeated store failures", logger.Fields(
		logger.FieldComponent, name,
		logger.FieldState, StateDegraded.String(),
	))

	// Already under s.breaker's lock, never s.mu; safe to take s.mu.
	s.mu.Lock()
	if s.state == StateActive {
		s.state = StateDegraded
	}
	s.mu.Unlock()
}
