package supervisor

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// State is the server's lifecycle state as seen by the launcher
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateKilled
}

// ExitReason describes why the server terminated
type ExitReason string

const (
	ExitReasonSuccess ExitReason = "success" // exit code 0
	ExitReasonError   ExitReason = "error"   // exit code != 0
	ExitReasonSignal  ExitReason = "signal"
	ExitReasonUnknown ExitReason = "unknown"
)

// Event is one lifecycle transition
type Event struct {
	PID        int        `json:"pid"`
	State      State      `json:"state"`
	Timestamp  time.Time  `json:"timestamp"`
	ExitCode   int        `json:"exit_code,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	Signal     string     `json:"signal,omitempty"`
}

// classifyExit maps a finished process to state, exit code and reason.
// Signal deaths use the shell convention 128+signo for the exit code.
func classifyExit(ps *os.ProcessState) (State, int, ExitReason, string) {
	if ps == nil {
		return StateFailed, -1, ExitReasonUnknown, ""
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		if ps.Success() {
			return StateCompleted, 0, ExitReasonSuccess, ""
		}
		return StateFailed, ps.ExitCode(), ExitReasonUnknown, ""
	}

	switch {
	case ws.Exited() && ws.ExitStatus() == 0:
		return StateCompleted, 0, ExitReasonSuccess, ""
	case ws.Exited():
		return StateFailed, ws.ExitStatus(), ExitReasonError, ""
	case ws.Signaled():
		sig := ws.Signal()
		return StateKilled, 128 + int(sig), ExitReasonSignal, SignalName(sig)
	}
	return StateFailed, -1, ExitReasonUnknown, ""
}

// SignalName returns the conventional name for sig
func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGABRT:
		return "SIGABRT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	case syscall.SIGPIPE:
		return "SIGPIPE"
	default:
		return fmt.Sprintf("SIG%d", int(sig))
	}
}
