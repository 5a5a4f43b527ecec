package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sys/unix"

	"github.com/psantana5/svclaunch/internal/observe"
	"github.com/psantana5/svclaunch/internal/pidfile"
	"github.com/psantana5/svclaunch/pkg/logging"
	"github.com/psantana5/svclaunch/pkg/retry"
	"github.com/psantana5/svclaunch/pkg/tracing"
)

const killWait = 5 * time.Second

var (
	stopForce   bool
	stopTimeout time.Duration
)

var errStillRunning = errors.New("still running")

var stopCmd = &cobra.Command{
	Use:   "stop [service]",
	Short: "Stop a service started with 'svclaunch start'",
	Long: `Stop sends SIGTERM to the process group of the PID recorded in the
service's PID file, waits for it to exit and removes the PID file.
With --force the process group gets SIGKILL instead.

Example:
  svclaunch stop photo-service
  svclaunch stop photo-service --timeout 30s
  svclaunch stop photo-service --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().BoolVar(&stopForce, "force", false, "send SIGKILL instead of SIGTERM")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "how long to wait for the server to exit (default from config)")
}

func runStop(cmd *cobra.Command, args []string) error {
	sc, err := cfg.Service(serviceArg(args))
	if err != nil {
		return err
	}
	if sc.PIDFile == "" {
		return fmt.Errorf("service %s has no PID file; exec mode services are supervised by their parent", sc.Name)
	}

	out := cmd.OutOrStdout()
	display := sc.Supervised().Display()
	pf := pidfile.New(sc.PIDFile)

	pid, err := pf.Read()
	switch {
	case errors.Is(err, pidfile.ErrNoPIDFile):
		fmt.Fprintf(out, "%s is not running (no PID file)\n", display)
		return nil
	case errors.Is(err, pidfile.ErrInvalidPID):
		if err := pf.Remove(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is not running (removed unreadable PID file)\n", display)
		return nil
	case err != nil:
		return err
	}

	if !observe.Alive(pid) {
		if err := pf.Remove(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is not running (removed stale PID file for %d)\n", display, pid)
		return nil
	}

	tp, err := newTracer(cmd.Context())
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	ctx, span := tp.StartSpan(cmd.Context(), "svclaunch.stop",
		attribute.String("service", sc.Name), attribute.Int("pid", pid), attribute.Bool("force", stopForce))
	elapsed, err := stopProcess(ctx, pid)
	tracing.End(span, err)
	if err != nil {
		return fmt.Errorf("stop %s (PID %d): %w", display, pid, err)
	}

	if err := pf.Remove(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Stopped %s (PID %d) in %s\n", display, pid, elapsed.Round(time.Millisecond))
	return nil
}

// stopProcess signals pid's process group and waits for pid to disappear
func stopProcess(ctx context.Context, pid int) (time.Duration, error) {
	timeout := stopTimeout
	if timeout <= 0 {
		timeout = cfg.Stop.Timeout
	}
	w := observe.NewWatcher(pid, 100*time.Millisecond)

	if stopForce {
		if err := signalGroup(pid, unix.SIGKILL); err != nil {
			return 0, err
		}
		waitCtx, cancel := context.WithTimeout(ctx, killWait)
		defer cancel()
		if err := w.Wait(waitCtx); err != nil {
			return w.Duration(), fmt.Errorf("still running after SIGKILL: %w", err)
		}
		return w.Duration(), nil
	}

	if err := signalGroup(pid, unix.SIGTERM); err != nil {
		return 0, err
	}
	logger.Debug("Sent SIGTERM, waiting for exit", logging.Fields{"pid": pid, "timeout": timeout.String()})

	err := retry.Do(ctx, retry.PollConfig(timeout), func() error {
		if w.Exists() {
			return errStillRunning
		}
		return nil
	})
	if err != nil {
		return w.Duration(), fmt.Errorf("not stopped after %s, retry with --force: %w", timeout, err)
	}
	return w.Duration(), nil
}

// signalGroup targets the session's process group. A PID that does not lead
// its own group, e.g. one written by another tool, is signalled directly.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
