package report

import (
	"fmt"
	"time"
)

// Result is the immutable summary of one launch, set once the server exits
type Result struct {
	LaunchID   string        `json:"launch_id"`
	Service    string        `json:"service"`
	PID        int           `json:"pid"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	ExitCode   int           `json:"exit_code"`
	ExitReason string        `json:"exit_reason"`
}

// NewResult creates an immutable result
func NewResult(launchID, service string, pid, exitCode int, reason string, start, end time.Time) *Result {
	return &Result{
		LaunchID:   launchID,
		Service:    service,
		PID:        pid,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
		ExitCode:   exitCode,
		ExitReason: reason,
	}
}

// Summary is the one-line form ops grep for
func (r *Result) Summary() string {
	return fmt.Sprintf("SERVICE %s | launch=%s | pid=%d | exit=%d | reason=%s | runtime=%.0fs",
		r.Service, r.LaunchID, r.PID, r.ExitCode, r.ExitReason, r.Duration.Seconds())
}
