package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/psantana5/svclaunch/internal/observe"
	"github.com/psantana5/svclaunch/internal/report"
)

// killWait bounds how long Stop waits for the reaper after SIGKILL
const killWait = 5 * time.Second

// Child is the retained handle to a launched server. A background
// goroutine reaps the process so that it never lingers as a zombie.
type Child struct {
	service  string
	launchID string
	cmd      *exec.Cmd

	events chan Event
	done   chan struct{}

	mu       sync.Mutex
	pid      int
	state    State
	timing   *observe.Timing
	exitCode int
	reason   ExitReason
	waitErr  error
}

func newChild(service, launchID string, cmd *exec.Cmd) *Child {
	c := &Child{
		service:  service,
		launchID: launchID,
		cmd:      cmd,
		// starting, running, exit
		events: make(chan Event, 3),
		done:   make(chan struct{}),
		state:  StateStarting,
	}
	c.emit(Event{State: StateStarting, Timestamp: time.Now()})
	return c
}

func (c *Child) start() error {
	if err := c.cmd.Start(); err != nil {
		return err
	}

	c.mu.Lock()
	c.pid = c.cmd.Process.Pid
	c.timing = observe.NewTiming()
	c.state = StateRunning
	pid, at := c.pid, c.timing.StartedAt
	c.mu.Unlock()

	c.emit(Event{PID: pid, State: StateRunning, Timestamp: at})
	go c.reap()
	return nil
}

func (c *Child) reap() {
	err := c.cmd.Wait()
	state, code, reason, sig := classifyExit(c.cmd.ProcessState)

	c.mu.Lock()
	c.state = state
	c.exitCode = code
	c.reason = reason
	c.timing.Complete()
	c.waitErr = err
	ev := Event{PID: c.pid, State: state, Timestamp: c.timing.CompletedAt, ExitCode: code, ExitReason: reason, Signal: sig}
	c.mu.Unlock()

	c.emit(ev)
	close(c.done)
}

// emit queues ev without blocking and closes the stream after a terminal state
func (c *Child) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
	if ev.State.Terminal() {
		close(c.events)
	}
}

// PID of the server process
func (c *Child) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// LaunchID identifies this launch in history
func (c *Child) LaunchID() string {
	return c.launchID
}

// StartedAt is when the process was started
func (c *Child) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timing == nil {
		return time.Time{}
	}
	return c.timing.StartedAt
}

// State returns the current lifecycle state
func (c *Child) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the process has exited and been reaped
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Events delivers lifecycle transitions and is closed after the exit event
func (c *Child) Events() <-chan Event {
	return c.events
}

// Wait blocks until the process exits. The error mirrors exec.Cmd.Wait.
func (c *Child) Wait() (int, error) {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, c.waitErr
}

// ExitCode is valid once Done is closed
func (c *Child) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// ExitReason is valid once Done is closed
func (c *Child) ExitReason() ExitReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Exited reports whether the process has been reaped
func (c *Child) Exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Stop sends SIGTERM to the server's process group and escalates to SIGKILL
// after grace or when ctx ends. The server is a session leader, so its
// process group id equals its PID.
func (c *Child) Stop(ctx context.Context, grace time.Duration) error {
	if c.Exited() {
		return nil
	}
	if err := c.signalGroup(unix.SIGTERM); err != nil {
		return err
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-c.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	if err := c.signalGroup(unix.SIGKILL); err != nil {
		return err
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(killWait):
		return errors.New("process did not exit after SIGKILL")
	}
}

func (c *Child) signalGroup(sig unix.Signal) error {
	err := unix.Kill(-c.PID(), sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// Result summarises the launch once the process has exited, nil before
func (c *Child) Result() *report.Result {
	if !c.Exited() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return report.NewResult(c.launchID, c.service, c.pid, c.exitCode, string(c.reason), c.timing.StartedAt, c.timing.CompletedAt)
}
