package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/svclaunch/internal/config"
	"github.com/psantana5/svclaunch/internal/logtail"
	"github.com/psantana5/svclaunch/internal/report"
	"github.com/psantana5/svclaunch/internal/supervisor"
	"github.com/psantana5/svclaunch/pkg/logging"
	"github.com/psantana5/svclaunch/pkg/shutdown"
)

const textfileInterval = 15 * time.Second

var (
	startNoFollow        bool
	startLines           int
	startStopOnExit      bool
	startMetricsAddr     string
	startMetricsTextfile string
)

var startCmd = &cobra.Command{
	Use:   "start [service]",
	Short: "Start a service in the background and follow its log",
	Long: `Start removes a stale PID file, launches the service's server in a new
session with stdout and stderr sent to its log file, records the new PID and
then streams the log to stdout until the launcher is signalled.

The server keeps running when the launcher exits unless --stop-on-exit is set.

Example:
  svclaunch start photo-service
  SERVICE_NAME="Photos (canary)" svclaunch start photo-service --metrics-addr :9400
  svclaunch start reaction-service --no-follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolVar(&startNoFollow, "no-follow", false, "return after launching instead of following the log")
	startCmd.Flags().IntVarP(&startLines, "lines", "n", 0, "begin following at the last N lines (0 = whole log)")
	startCmd.Flags().BoolVar(&startStopOnExit, "stop-on-exit", false, "stop the server when the launcher is signalled")
	startCmd.Flags().StringVar(&startMetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address (default from config)")
	startCmd.Flags().StringVar(&startMetricsTextfile, "metrics-textfile", "", "periodically write metrics to this file for node_exporter (default from config)")
	startCmd.MarkFlagsMutuallyExclusive("no-follow", "stop-on-exit")
}

func runStart(cmd *cobra.Command, args []string) error {
	sc, err := cfg.Service(serviceArg(args))
	if err != nil {
		return err
	}
	if sc.Mode != config.ModeBackground {
		return fmt.Errorf("service %s runs in %s mode, use 'svclaunch exec %s'", sc.Name, sc.Mode, sc.Name)
	}

	log := logger.WithField("service", sc.Name)
	mgr := shutdown.New(cfg.Stop.Timeout, log)
	defer mgr.Shutdown()

	ctx, cancel := mgr.Context(cmd.Context())
	defer cancel()

	history, err := openHistory()
	if err != nil {
		return err
	}
	mgr.Register("history", shutdown.CloseResource(history))

	tp, err := newTracer(ctx)
	if err != nil {
		return err
	}
	mgr.Register("tracing", tp.Shutdown)

	metrics := report.NewMetrics()
	sup := supervisor.New(sc.Supervised(),
		supervisor.WithLogger(log),
		supervisor.WithMetrics(metrics),
		supervisor.WithTracer(tp.Tracer()),
		supervisor.WithHistory(history),
		supervisor.WithOutput(cmd.OutOrStdout()),
	)

	child, err := sup.Start(ctx)
	if err != nil {
		return err
	}

	if err := serveMetrics(ctx, mgr, metrics, child, log); err != nil {
		return err
	}

	if startStopOnExit {
		mgr.Register("stop server", func(ctx context.Context) error {
			log.Info("Stopping server", logging.Fields{"pid": child.PID()})
			if err := child.Stop(ctx, cfg.Stop.Grace); err != nil {
				return err
			}
			// Later hooks export metrics and close history; the exit must be in both.
			return sup.WaitRecorded(ctx)
		})
	}

	if startNoFollow {
		return mgr.Shutdown()
	}

	// Following only ends on error or interruption, never with success.
	err = sup.Follow(ctx, cmd.OutOrStdout(), logtail.Options{Lines: startLines})
	if sig := mgr.Signal(); sig != nil && errors.Is(err, context.Canceled) {
		err = &shutdown.SignalError{Signal: sig}
	}
	if shutdownErr := mgr.Shutdown(); shutdownErr != nil {
		log.Warn("Shutdown incomplete", logging.Fields{"error": shutdownErr.Error()})
	}
	return err
}

// serveMetrics starts the optional HTTP endpoint and textfile writer
func serveMetrics(ctx context.Context, mgr *shutdown.Manager, metrics *report.Metrics, child *supervisor.Child, log *logging.Logger) error {
	addr := startMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		srv := report.NewServer(addr, metrics, func() bool { return !child.Exited() }, log)
		bound, err := srv.Start()
		if err != nil {
			return err
		}
		log.Info("Metrics server listening", logging.Fields{"addr": bound.String()})
		mgr.Register("metrics server", srv.Shutdown)
	}

	textfile := startMetricsTextfile
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}
	if textfile == "" {
		return nil
	}

	write := func() {
		if err := metrics.WriteTextfile(textfile); err != nil {
			log.Warn("Failed to write metrics textfile", logging.Fields{"path": textfile, "error": err.Error()})
		}
	}
	write()
	go func() {
		ticker := time.NewTicker(textfileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				write()
			}
		}
	}()
	mgr.Register("metrics textfile", func(context.Context) error {
		return metrics.WriteTextfile(textfile)
	})
	return nil
}
