package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/svclaunch/pkg/logging"
)

// Hook is a named shutdown step
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Manager runs registered hooks in reverse order once a termination signal arrives
type Manager struct {
	mu       sync.Mutex
	hooks    []Hook
	timeout  time.Duration
	logger   *logging.Logger
	doneChan chan struct{}
	once     sync.Once
	ran      bool

	sigMu sync.Mutex
	sig   os.Signal
}

// SignalError reports that the process is stopping because of a signal.
// ExitCode follows the shell convention of 128 plus the signal number.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "interrupted by " + e.Signal.String()
}

// ExitCode returns the status a shell would report for e.Signal
func (e *SignalError) ExitCode() int {
	if s, ok := e.Signal.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}

// New creates a new shutdown manager
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		timeout:  timeout,
		logger:   logger,
		doneChan: make(chan struct{}),
	}
}

// Register adds a shutdown hook. Hooks run LIFO.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Done is closed when shutdown has been initiated
func (m *Manager) Done() <-chan struct{} {
	return m.doneChan
}

// Signal returns the signal that initiated shutdown, or nil if none arrived
func (m *Manager) Signal() os.Signal {
	m.sigMu.Lock()
	defer m.sigMu.Unlock()
	return m.sig
}

// Trigger initiates shutdown without a signal
func (m *Manager) Trigger() {
	m.once.Do(func() {
		close(m.doneChan)
	})
}

// Context returns a child of parent that is cancelled on SIGINT/SIGTERM or Trigger
func (m *Manager) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			m.logger.Info("Received signal, initiating shutdown", logging.Fields{"signal": sig.String()})
			m.sigMu.Lock()
			m.sig = sig
			m.sigMu.Unlock()
			m.Trigger()
			cancel()
		case <-m.doneChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Shutdown executes all registered hooks once, newest first.
// Every hook runs even if an earlier one fails; the first error is returned.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ran {
		return nil
	}
	m.ran = true
	m.Trigger()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var firstErr error
	for i := len(m.hooks) - 1; i >= 0; i-- {
		hook := m.hooks[i]
		if err := hook.Fn(ctx); err != nil {
			m.logger.Warn("Shutdown hook failed", logging.Fields{"hook": hook.Name, "error": err.Error()})
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown %s: %w", hook.Name, err)
			}
			continue
		}
		m.logger.Debug("Shutdown hook done", logging.Fields{"hook": hook.Name})
	}

	return firstErr
}

// CloseResource creates a shutdown function for io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return closer.Close()
	}
}
