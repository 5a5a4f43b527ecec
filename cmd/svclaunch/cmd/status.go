package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/svclaunch/internal/config"
	"github.com/psantana5/svclaunch/internal/observe"
	"github.com/psantana5/svclaunch/internal/pidfile"
	"github.com/psantana5/svclaunch/pkg/logging"
)

// Service states reported by status
const (
	stateRunning = "running"
	stateStale   = "stale"
	stateStopped = "stopped"
	stateExec    = "exec"
)

type serviceStatus struct {
	Service       string  `json:"service"`
	DisplayName   string  `json:"display_name"`
	Mode          string  `json:"mode"`
	State         string  `json:"state"`
	PID           int     `json:"pid,omitempty"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	RSSBytes      uint64  `json:"rss_bytes,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds,omitempty"`
	PIDFile       string  `json:"pid_file,omitempty"`
	LogFile       string  `json:"log_file,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status [service...]",
	Short: "Show whether services are running",
	Long: `Status reads each service's PID file and probes the recorded process.
A PID file naming a dead process is reported as stale; it is cleaned up by
the next start or stop.

Example:
  svclaunch status
  svclaunch status photo-service --output json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = cfg.ServiceNames()
	}

	statuses := make([]serviceStatus, 0, len(names))
	for _, name := range names {
		sc, err := cfg.Service(name)
		if err != nil {
			return err
		}
		st, err := collectStatus(cmd.Context(), sc)
		if err != nil {
			return err
		}
		statuses = append(statuses, st)
	}

	if IsJSONOutput() {
		return printJSON(cmd.OutOrStdout(), statuses)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Service", "State", "PID", "CPU", "Memory", "Uptime", "Log")
	for _, st := range statuses {
		pid, cpu, mem, uptime := "-", "-", "-", "-"
		if st.PID > 0 {
			pid = fmt.Sprintf("%d", st.PID)
		}
		if st.State == stateRunning {
			cpu = fmt.Sprintf("%.1f%%", st.CPUPercent)
			mem = formatBytes(st.RSSBytes)
			uptime = (time.Duration(st.UptimeSeconds) * time.Second).String()
		}
		logFile := st.LogFile
		if logFile == "" {
			logFile = "-"
		}
		table.Append([]string{st.Service, st.State, pid, cpu, mem, uptime, logFile})
	}
	return table.Render()
}

func collectStatus(ctx context.Context, sc config.ServiceConfig) (serviceStatus, error) {
	st := serviceStatus{
		Service:     sc.Name,
		DisplayName: sc.Supervised().Display(),
		Mode:        string(sc.Mode),
		PIDFile:     sc.PIDFile,
		LogFile:     sc.LogFile,
	}
	if sc.PIDFile == "" {
		st.State = stateExec
		return st, nil
	}

	pid, err := pidfile.New(sc.PIDFile).Read()
	switch {
	case errors.Is(err, pidfile.ErrNoPIDFile):
		st.State = stateStopped
		return st, nil
	case errors.Is(err, pidfile.ErrInvalidPID):
		st.State = stateStale
		return st, nil
	case err != nil:
		return st, err
	}

	st.PID = pid
	if !observe.Alive(pid) {
		st.State = stateStale
		return st, nil
	}

	st.State = stateRunning
	stats, err := observe.Stats(ctx, pid)
	if err != nil {
		// Exited between the probe and the stats read.
		if !observe.Alive(pid) {
			st.State = stateStale
			return st, nil
		}
		logger.Warn("Could not read process stats", logging.Fields{"pid": pid, "error": err.Error()})
		return st, nil
	}
	st.CPUPercent = stats.CPUPercent
	st.RSSBytes = stats.RSSBytes
	st.UptimeSeconds = stats.Uptime().Round(time.Second).Seconds()
	return st, nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
