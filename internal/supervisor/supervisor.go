// Package supervisor starts, records and follows one server process.
//
// The server is started in its own session with its output sent to a log
// file and is never bound to the launcher's context: stopping the launcher
// does not stop the server unless the caller asks for it via Child.Stop.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/psantana5/svclaunch/internal/logtail"
	"github.com/psantana5/svclaunch/internal/observe"
	"github.com/psantana5/svclaunch/internal/pidfile"
	"github.com/psantana5/svclaunch/internal/report"
	"github.com/psantana5/svclaunch/pkg/logging"
	"github.com/psantana5/svclaunch/pkg/store"
	"github.com/psantana5/svclaunch/pkg/tracing"
)

// Supervisor owns the PID file and log file pair of one service
type Supervisor struct {
	svc     Service
	pidFile *pidfile.File
	logger  *logging.Logger
	metrics *report.Metrics
	tracer  trace.Tracer
	history store.Store
	out     io.Writer
	alive   func(pid int) bool

	// recorded tracks children whose exit has not been written yet
	recorded sync.WaitGroup
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLogger sets the diagnostics logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *report.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithTracer sets the tracer used for launch spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Supervisor) { s.tracer = t }
}

// WithHistory sets the launch history store
func WithHistory(h store.Store) Option {
	return func(s *Supervisor) { s.history = h }
}

// WithOutput sets where status lines are printed
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) { s.out = w }
}

// New creates a supervisor for svc
func New(svc Service, opts ...Option) *Supervisor {
	s := &Supervisor{
		svc:     svc,
		pidFile: pidfile.New(svc.PIDFile),
		logger:  logging.Discard(),
		metrics: report.NewMetrics(),
		tracer:  noop.NewTracerProvider().Tracer(""),
		history: store.NewMemoryStore(),
		out:     os.Stdout,
		alive:   observe.Alive,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("service", svc.Name)
	return s
}

// Service returns the supervised service
func (s *Supervisor) Service() Service {
	return s.svc
}

// PIDFile returns the service's PID file
func (s *Supervisor) PIDFile() *pidfile.File {
	return s.pidFile
}

// CleanupStale removes the PID file unless it names a live process.
// A live PID is only reported; the file is overwritten by the next RecordPID.
func (s *Supervisor) CleanupStale(ctx context.Context) (pidfile.Stale, error) {
	_, span := s.tracer.Start(ctx, "supervisor.cleanup_stale_pid",
		trace.WithAttributes(attribute.String("service", s.svc.Name), attribute.String("pid_file", s.svc.PIDFile)))

	st, err := s.pidFile.CleanupStale(s.alive)
	if err != nil {
		err = fmt.Errorf("cleanup stale pid file %s: %w", s.svc.PIDFile, err)
	}
	span.SetAttributes(attribute.Int("pid", st.PID), attribute.Bool("removed", st.Removed))
	tracing.End(span, err)
	if err != nil {
		return st, err
	}

	switch {
	case st.Removed:
		s.logger.Info("Removed stale PID file", logging.Fields{"pid": st.PID, "pid_file": s.svc.PIDFile})
		s.metrics.StaleRemoved(s.svc.Name)
	case st.Running:
		s.logger.Warn("PID file names a running process, it will be overwritten",
			logging.Fields{"pid": st.PID, "pid_file": s.svc.PIDFile})
	}
	return st, nil
}

// Launch starts the server in a new session with stdout and stderr sent to
// the log file and returns without waiting for it.
func (s *Supervisor) Launch(ctx context.Context) (*Child, error) {
	_, span := s.tracer.Start(ctx, "supervisor.launch",
		trace.WithAttributes(attribute.String("service", s.svc.Name), attribute.String("command", s.svc.CommandLine())))

	child, err := s.launch()
	if err == nil {
		span.SetAttributes(attribute.Int("pid", child.PID()))
	}
	tracing.End(span, err)
	return child, err
}

func (s *Supervisor) launch() (*Child, error) {
	if len(s.svc.Command) == 0 {
		return nil, &LaunchError{Service: s.svc.Name, Err: ErrNoCommand}
	}

	logFile, err := openLog(s.svc.LogFile, s.svc.LogMode)
	if err != nil {
		return nil, &LaunchError{Service: s.svc.Name, Command: s.svc.Command, Err: err}
	}
	// The child keeps its own descriptor.
	defer logFile.Close()

	cmd := exec.Command(s.svc.Command[0], s.svc.Command[1:]...)
	cmd.Dir = s.svc.Dir
	cmd.Env = s.svc.environ()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	child := newChild(s.svc.Name, store.NewLaunchID(), cmd)
	if err := child.start(); err != nil {
		return nil, &LaunchError{Service: s.svc.Name, Command: s.svc.Command, Err: err}
	}

	s.logger.Debug("Server launched", logging.Fields{
		"pid":      child.PID(),
		"command":  s.svc.CommandLine(),
		"log_file": s.svc.LogFile,
		"log_mode": string(s.svc.LogMode),
	})
	return child, nil
}

// RecordPID overwrites the PID file with the child's PID
func (s *Supervisor) RecordPID(child *Child) error {
	if err := s.pidFile.Write(child.PID()); err != nil {
		return fmt.Errorf("record pid: %w", err)
	}
	return nil
}

// Start runs cleanup, launch and record in order and prints the status lines.
// If recording the PID fails the running child is still returned.
func (s *Supervisor) Start(ctx context.Context) (*Child, error) {
	fmt.Fprintf(s.out, "Starting %s...\n", s.svc.Display())

	if _, err := s.CleanupStale(ctx); err != nil {
		return nil, err
	}

	child, err := s.Launch(ctx)
	if err != nil {
		s.metrics.LaunchFailed(s.svc.Name)
		return nil, err
	}

	if err := s.RecordPID(child); err != nil {
		s.metrics.LaunchFailed(s.svc.Name)
		return child, err
	}

	s.metrics.LaunchSucceeded(s.svc.Name, child.StartedAt())
	s.recordLaunch(child)
	s.recorded.Add(1)
	go s.recordExit(child)

	fmt.Fprintf(s.out, "%s started with PID %d\n", s.svc.Display(), child.PID())
	fmt.Fprintf(s.out, "Logs: %s\n", s.svc.LogFile)
	return child, nil
}

func (s *Supervisor) recordLaunch(child *Child) {
	err := s.history.RecordLaunch(&store.Launch{
		ID:        child.LaunchID(),
		Service:   s.svc.Name,
		PID:       child.PID(),
		Command:   s.svc.CommandLine(),
		LogFile:   s.svc.LogFile,
		StartedAt: child.StartedAt(),
	})
	if err != nil {
		s.logger.Warn("Failed to record launch history", logging.Fields{"error": err.Error()})
	}
}

func (s *Supervisor) recordExit(child *Child) {
	defer s.recorded.Done()
	<-child.Done()
	res := child.Result()

	s.metrics.ChildExited(s.svc.Name, res.ExitReason)
	if err := s.history.RecordExit(res.LaunchID, res.EndTime, res.ExitCode, res.ExitReason); err != nil {
		s.logger.Warn("Failed to record exit in history", logging.Fields{"error": err.Error()})
	}
	s.logger.Info(res.Summary())
}

// WaitRecorded blocks until the exit of every child returned by Start has
// been written to metrics and history, or ctx is done.
func (s *Supervisor) WaitRecorded(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.recorded.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Follow streams the log file to w until ctx is cancelled
func (s *Supervisor) Follow(ctx context.Context, w io.Writer, opts logtail.Options) error {
	next := opts.OnWrite
	opts.OnWrite = func(n int) {
		s.metrics.LogBytes(s.svc.Name, n)
		if next != nil {
			next(n)
		}
	}
	return logtail.Follow(ctx, s.svc.LogFile, w, opts)
}
