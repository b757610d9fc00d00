// Package lifecycle starts and stops the service's long-lived components in
// dependency order: a component starts only after everything it depends on
// is running, and stops before anything it depends on.
package lifecycle

import "context"

// Component is a managed long-lived part of the service.
type Component interface {
	// Start initializes the component. It must be safe to call more than
	// once and should return promptly; long-running work belongs in
	// goroutines the component owns.
	Start(ctx context.Context) error

	// Stop shuts the component down, letting in-flight work finish within
	// the context deadline.
	Stop(ctx context.Context) error

	// Name identifies the component in logs.
	Name() string
}
