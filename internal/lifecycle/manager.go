package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opsight/opsight/internal/logging"
)

// DefaultShutdownTimeout is the per-component grace period during Stop.
const DefaultShutdownTimeout = 30 * time.Second

// Manager starts registered components in dependency order and stops them
// in reverse. A failed startup rolls back everything already started.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	dependencies    map[Component][]Component
	started         []Component
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates a lifecycle manager.
func NewManager() *Manager {
	return &Manager{
		dependencies:    make(map[Component][]Component),
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// Register adds a component. Dependencies must already be registered; the
// component will start after them and stop before them.
func (m *Manager) Register(component Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return errors.New("cannot register nil component")
	}
	if component.Name() == "" {
		return errors.New("component must have a non-empty name")
	}
	for _, c := range m.components {
		if c == component {
			return fmt.Errorf("component %s is already registered", component.Name())
		}
	}
	for _, dep := range dependsOn {
		if !m.isRegistered(dep) {
			return fmt.Errorf("dependency %s of %s is not registered", dep.Name(), component.Name())
		}
	}

	m.components = append(m.components, component)
	m.dependencies[component] = dependsOn
	m.logger.Debug("registered component %s (%d dependencies)", component.Name(), len(dependsOn))
	return nil
}

func (m *Manager) isRegistered(c Component) bool {
	for _, registered := range m.components {
		if registered == c {
			return true
		}
	}
	return false
}

// Start brings every component up in dependency order. If any Start fails,
// components already running are stopped in reverse order and the error is
// returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = nil
	for _, component := range m.topologicalOrder() {
		m.logger.Info("starting %s", component.Name())
		begin := time.Now()

		if err := component.Start(ctx); err != nil {
			m.logger.ErrorWithErr(fmt.Sprintf("failed to start %s", component.Name()), err)
			m.rollback()
			return fmt.Errorf("starting %s: %w", component.Name(), err)
		}

		m.started = append(m.started, component)
		m.logger.Info("%s started (%dms)", component.Name(), time.Since(begin).Milliseconds())
	}

	m.logger.Info("all components started")
	return nil
}

// topologicalOrder returns components with every dependency ahead of its
// dependents. Registration order is preserved among independent components.
func (m *Manager) topologicalOrder() []Component {
	visited := make(map[Component]bool)
	var ordered []Component

	var visit func(Component)
	visit = func(c Component) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, dep := range m.dependencies[c] {
			visit(dep)
		}
		ordered = append(ordered, c)
	}

	for _, c := range m.components {
		visit(c)
	}
	return ordered
}

// rollback stops already-started components after a failed Start, newest
// first, with a short per-component deadline.
func (m *Manager) rollback() {
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := component.Stop(ctx); err != nil {
			m.logger.Warn("error stopping %s during rollback: %v", component.Name(), err)
		}
		cancel()
	}
	m.started = nil
}

// Stop shuts components down in reverse startup order. Each component gets
// its own grace period; a component that overruns is logged and abandoned so
// the rest can still stop. Stop never returns an error.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("stopping all components")

	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		m.logger.Info("stopping %s", component.Name())
		begin := time.Now()

		componentCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(componentCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("%s exceeded its %dms grace period", component.Name(), m.shutdownTimeout.Milliseconds())
		case err != nil:
			m.logger.ErrorWithErr(fmt.Sprintf("error stopping %s", component.Name()), err)
		default:
			m.logger.Info("%s stopped (%dms)", component.Name(), time.Since(begin).Milliseconds())
		}
	}

	m.started = nil
	m.logger.Info("all components stopped")
	return nil
}

// SetShutdownTimeout overrides the per-component grace period.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}
