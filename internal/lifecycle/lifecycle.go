// Package lifecycle coordinates graceful shutdown of background components.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds graceful shutdown of all components.
const DefaultTimeout = 5 * time.Second

// Component is something that needs cleanup on shutdown.
type Component interface {
	// Name returns the component name for logging
	Name() string

	// Shutdown performs graceful shutdown
	Shutdown(ctx context.Context) error

	// ForceStop performs immediate termination if graceful shutdown fails
	ForceStop()
}

// Manager shuts components down in reverse registration order.
type Manager struct {
	mu         sync.Mutex
	components []Component
	isShutdown bool
	timeout    time.Duration

	shutdownCh chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	err        error
}

// New creates a manager. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		timeout:    timeout,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register adds a component.
func (m *Manager) Register(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isShutdown {
		log.Warn("Cannot register component during shutdown", "component", c.Name())
		return
	}
	m.components = append(m.components, c)
	log.Debug("Registered lifecycle component", "name", c.Name())
}

// Start begins watching for SIGINT and SIGTERM.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.monitorSignals()
}

func (m *Manager) monitorSignals() {
	defer m.wg.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", "signal", sig)
		go func() { _ = m.Shutdown() }()
	case <-m.shutdownCh:
		log.Debug("Shutdown initiated programmatically")
	}
}

// Shutdown stops every component. Components that fail to shut down
// gracefully are force-stopped. Calling it again returns the first result.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		<-m.done
		return m.err
	}
	m.isShutdown = true
	components := append([]Component(nil), m.components...)
	m.mu.Unlock()

	log.Info("Starting graceful shutdown")
	close(m.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		log.Debug("Shutting down component", "name", c.Name())

		if err := c.Shutdown(ctx); err != nil {
			log.Warn("Component graceful shutdown failed", "name", c.Name(), "error", err)
			c.ForceStop()
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}

	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		log.Info("Graceful shutdown complete")
	case <-time.After(2 * time.Second):
		log.Warn("Timeout waiting for goroutines to finish")
	}

	m.err = errors.Join(errs...)
	close(m.done)
	return m.err
}

// Done closes when shutdown has completed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until shutdown is complete.
func (m *Manager) Wait() {
	<-m.done
}

// Func adapts a shutdown function into a Component.
type Func struct {
	name     string
	shutdown func(ctx context.Context) error
}

// NewFunc creates a component named name.
func NewFunc(name string, shutdown func(ctx context.Context) error) *Func {
	return &Func{name: name, shutdown: shutdown}
}

// Name returns the component name.
func (f *Func) Name() string { return f.name }

// Shutdown runs the shutdown function.
func (f *Func) Shutdown(ctx context.Context) error { return f.shutdown(ctx) }

// ForceStop does nothing; Func components have no forced path.
func (f *Func) ForceStop() {}
