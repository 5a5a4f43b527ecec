package observe

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcStats is a point-in-time view of a running server process
type ProcStats struct {
	PID        int       `json:"pid"`
	Name       string    `json:"name"`
	Cmdline    string    `json:"cmdline"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	Threads    int32     `json:"threads"`
	StartedAt  time.Time `json:"started_at"`
}

// Uptime returns how long the process has been running
func (s *ProcStats) Uptime() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// Stats collects process details for pid. Fields the OS refuses to
// report are left zero; only a missing process is an error.
func Stats(ctx context.Context, pid int) (*ProcStats, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}

	stats := &ProcStats{PID: pid}
	if name, err := p.NameWithContext(ctx); err == nil {
		stats.Name = name
	}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		stats.Cmdline = cmdline
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = threads
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil && created > 0 {
		stats.StartedAt = time.UnixMilli(created)
	}
	return stats, nil
}
