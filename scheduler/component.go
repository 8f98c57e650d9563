package scheduler

import (
	"context"
	"fmt"

	"github.com/kbukum/sessionkit/component"
)

// Component wraps a Scheduler and implements component.Component for
// lifecycle management.
type Component struct {
	scheduler *Scheduler
}

// NewComponent creates a scheduler component for use with the
// component registry.
func NewComponent(s *Scheduler) *Component {
	return &Component{scheduler: s}
}

// Scheduler returns the wrapped scheduler.
func (c *Component) Scheduler() *Scheduler {
	return c.scheduler
}

// Name returns the component name.
func (c *Component) Name() string { return "scheduler" }

// Start launches both loops.
func (c *Component) Start(ctx context.Context) error {
	if err := c.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	return nil
}

// Stop cancels every timer and waits for the loops to exit.
func (c *Component) Stop(_ context.Context) error {
	c.scheduler.Stop()
	return nil
}

// Health maps the scheduler state: Active is healthy, Degraded is
// degraded, Inactive is unhealthy.
func (c *Component) Health(_ context.Context) component.Health {
	state := c.scheduler.State()
	health := component.Health{Name: c.Name(), Message: fmt.Sprintf("state: %s", state)}
	switch state {
	case StateActive:
		health.Status = component.StatusHealthy
	case StateDegraded:
		health.Status = component.StatusDegraded
	default:
		health.Status = component.StatusUnhealthy
	}
	return health
}

// compile-time interface check
var _ component.Component = (*Component)(nil)
