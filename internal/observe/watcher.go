package observe

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// Alive reports whether a process with pid exists, using the null signal.
// EPERM means the process exists but is not ours to signal, so it counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Watcher observes PID lifecycle. Nothing else.
type Watcher struct {
	pid       int
	interval  time.Duration
	startTime time.Time
	alive     func(int) bool
}

// NewWatcher creates a watcher polling pid every interval
func NewWatcher(pid int, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		pid:       pid,
		interval:  interval,
		startTime: time.Now(),
		alive:     Alive,
	}
}

// Exists checks if PID still exists
func (w *Watcher) Exists() bool {
	return w.alive(w.pid)
}

// Wait blocks until the PID is gone or ctx ends
func (w *Watcher) Wait(ctx context.Context) error {
	if !w.Exists() {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !w.Exists() {
				return nil
			}
		}
	}
}

// Duration returns how long we've been observing
func (w *Watcher) Duration() time.Duration {
	return time.Since(w.startTime)
}
