// Package connectivity tracks whether the assistant API is reachable and
// notifies listeners on every online/offline transition.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/krishimitr/assistant/internal/observability"
)

// HealthChecker checks reachability of the remote API.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f HealthCheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// Handler is called once per transition with the new state.
type Handler func(ctx context.Context, online bool)

// Monitor holds the online flag. Handlers run synchronously, in registration
// order, on the goroutine that applied the transition.
type Monitor struct {
	checker  HealthChecker
	interval time.Duration
	logger   *observability.Logger

	mu       sync.Mutex
	online   bool
	handlers []Handler
	// transition serializes handler runs so flaps are delivered in order.
	transition sync.Mutex
}

// NewMonitor creates a monitor with an initial state.
func NewMonitor(checker HealthChecker, interval time.Duration, initial bool, logger *observability.Logger) *Monitor {
	if logger == nil {
		logger = observability.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		online:   initial,
		logger:   logger.WithComponent("connectivity"),
	}
}

// OnChange registers a transition handler.
func (m *Monitor) OnChange(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// IsOnline returns the current state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set applies a new state. It reports whether this was a transition; setting
// the current state again does nothing.
func (m *Monitor) Set(ctx context.Context, online bool) bool {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	m.logger.Info().Bool("online", online).Msg("Connectivity changed")

	for _, h := range handlers {
		h(ctx, online)
	}
	return true
}

// Check tests reachability once and applies the result.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.checker.CheckHealth(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Health check failed")
	}
	return m.Set(ctx, err == nil)
}

// Run checks on every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
