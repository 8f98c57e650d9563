package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/kbukum/sessionkit/artifact"
	"github.com/kbukum/sessionkit/authclient"
	"github.com/kbukum/sessionkit/clientstate"
	"github.com/kbukum/sessionkit/component"
	"github.com/kbukum/sessionkit/httpclient"
	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/location"
	"github.com/kbukum/sessionkit/logger"
	"github.com/kbukum/sessionkit/scheduler"
	"github.com/kbukum/sessionkit/session"
)

// activityPath is the endpoint the production ping posts to.
const activityPath = "/api/session/activity"

// App wires the full session stack from a single Config and manages its
// lifecycle: the key-value store and the scheduler run as registered
// components, everything else hangs off the store.
//
// Example:
//
//	cfg, err := bootstrap.LoadConfig("myapp")
//	app, err := bootstrap.NewApp(cfg)
//	app.Run(context.Background())
type App struct {
	Name    string
	Version string
	Cfg     *Config

	Components *component.Registry
	Logger     *logger.Logger

	Store     *kvstore.Connector
	State     *clientstate.State
	Sessions  *session.Store
	Auth      *authclient.Client
	Location  *location.Resolver
	Artifacts *artifact.Cache
	Scheduler *scheduler.Scheduler

	gracefulTimeout time.Duration

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp builds the application from a validated config. The store
// component is registered before the scheduler so startup brings the
// backend up first and shutdown tears it down last.
func NewApp(cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)

	log := o.logger
	if log == nil {
		log = logger.New(&cfg.Logging, cfg.Name)
	}

	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(log),
		Logger:          log,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	kvc, err := kvstore.NewComponent(cfg.Store, log)
	if err != nil {
		return nil, err
	}
	if err := app.Components.Register(kvc); err != nil {
		return nil, err
	}
	app.Store = kvc.Store()

	app.State = clientstate.New(app.Store, log)
	app.Sessions = session.NewStore(app.Store, cfg.Session, log)

	app.Auth, err = authclient.New(cfg.Auth, app.State, log)
	if err != nil {
		return nil, err
	}

	app.Location, err = location.New(cfg.Location, log)
	if err != nil {
		return nil, err
	}

	// Outbound calls to the backend carry the stored access token when
	// one exists.
	bearer := httpclient.BearerAuthFunc(func() string {
		token, ok, err := app.State.AccessToken(context.Background())
		if err != nil || !ok {
			return ""
		}
		return token
	})

	if cfg.Artifact.Remote.BaseURL != "" {
		rc, err := httpclient.New(httpclient.Config{
			BaseURL: cfg.Artifact.Remote.BaseURL,
			Timeout: cfg.Artifact.Remote.Timeout,
			Auth:    bearer,
		})
		if err != nil {
			return nil, err
		}
		remote := artifact.NewHTTPRemoteStore(rc, cfg.Artifact.Remote.Path)
		app.Artifacts = artifact.NewCache(app.Store, remote, cfg.Artifact.Config, log)
	}

	var ping scheduler.Pinger
	if cfg.Scheduler.Production {
		pc, err := httpclient.New(httpclient.Config{
			BaseURL: cfg.Auth.BaseURL,
			Timeout: cfg.Auth.Timeout,
			Auth:    bearer,
		})
		if err != nil {
			return nil, err
		}
		ping = scheduler.NewHTTPPinger(pc, activityPath)
	}

	device := o.device
	if device == (session.DeviceInfo{}) {
		device = session.DeviceInfo{
			UserAgent: cfg.Name + "/" + cfg.Version,
			Platform:  runtime.GOOS,
		}
	}

	app.Scheduler, err = scheduler.New(cfg.Scheduler, scheduler.Deps{
		Sessions:         app.Sessions,
		Auth:             app.Auth,
		Client:           app.State,
		Location:         app.Location,
		Ping:             ping,
		Device:           device,
		OnSessionExpired: o.onSessionExpired,
	}, log)
	if err != nil {
		return nil, err
	}
	if err := app.Components.Register(scheduler.NewComponent(app.Scheduler)); err != nil {
		return nil, err
	}

	return app, nil
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	results := a.Components.HealthAll(ctx)
	var unhealthy []string
	for _, h := range results {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run executes the full lifecycle for long-running services: start all
// components, run hooks, block until a shutdown signal, then shut down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask executes a finite task with the same startup and shutdown
// sequence as Run. The task context is canceled on SIGINT/SIGTERM so
// the task can exit early.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", map[string]interface{}{
				"signal": sig.String(),
			})
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// startup runs the common initialization sequence shared by Run and RunTask.
func (a *App) startup(ctx context.Context) error {
	a.Logger.Info("Starting application", map[string]interface{}{
		"name":    a.Name,
		"version": a.Version,
	})

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	return nil
}

// WaitForSignal blocks until an OS interrupt/term signal or context
// cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own
// lifecycle instead of Run.
func (a *App) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop gracefully shuts down all components within the graceful timeout.
func (a *App) stop() error {
	a.Logger.Info("Shutting down application", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error

	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", map[string]interface{}{
			"error": err.Error(),
		})
		shutdownErr = err
	}

	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", map[string]interface{}{
			"error": err.Error(),
		})
		shutdownErr = err
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
