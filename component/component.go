// Package component defines the lifecycle interface shared by the store and
// scheduler singletons, plus a registry that starts them in dependency order
// and stops them in reverse.
package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed piece of infrastructure.
// The key-value store and the session scheduler both implement it.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component. Start must be idempotent:
	// a second call on a started component is a no-op.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources,
	// cancelling every pending timer before returning.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}
