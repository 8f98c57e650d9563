package kvstore

import (
	"context"
	"fmt"

	"github.com/kbukum/sessionkit/component"
	"github.com/kbukum/sessionkit/logger"
)

// Component wraps a Connector and implements component.Component for
// lifecycle management.
type Component struct {
	connector *Connector
	cfg       Config
}

// NewComponent creates a kvstore component for use with the component
// registry.
func NewComponent(cfg Config, log *logger.Logger) (*Component, error) {
	connector, err := NewConnector(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Component{connector: connector, cfg: cfg}, nil
}

// Store returns the connector serving as the process-wide store.
func (c *Component) Store() *Connector {
	return c.connector
}

// Name returns the component name.
func (c *Component) Name() string { return "kvstore" }

// Start connects the store.
func (c *Component) Start(ctx context.Context) error {
	if err := c.connector.Connect(ctx); err != nil {
		return fmt.Errorf("kvstore start: %w", err)
	}
	return nil
}

// Stop disconnects the store, cancelling pending eviction timers.
func (c *Component) Stop(ctx context.Context) error {
	return c.connector.Disconnect(ctx)
}

// Health reports the connector's observable connection state.
func (c *Component) Health(_ context.Context) component.Health {
	if !c.connector.Connected() {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("state: %s", c.connector.State()),
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// compile-time interface check
var _ component.Component = (*Component)(nil)
