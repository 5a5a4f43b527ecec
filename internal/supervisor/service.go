package supervisor

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// LogMode selects how the log file is opened for a new launch
type LogMode string

const (
	// LogTruncate starts each launch with an empty log, like `>`
	LogTruncate LogMode = "truncate"
	// LogAppend keeps earlier output, like `>>`
	LogAppend LogMode = "append"
)

// ErrNoCommand is returned for a service without argv
var ErrNoCommand = errors.New("no command configured")

// Service describes one server the launcher can start
type Service struct {
	Name        string
	DisplayName string
	Command     []string
	Dir         string
	// Env holds KEY=VALUE pairs added to the launcher's environment
	Env     []string
	PIDFile string
	LogFile string
	LogMode LogMode
}

// Display is the human name used in status lines
func (s Service) Display() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// CommandLine is argv joined for logs and history
func (s Service) CommandLine() string {
	return strings.Join(s.Command, " ")
}

func (s Service) environ() []string {
	if len(s.Env) == 0 {
		return nil
	}
	return append(os.Environ(), s.Env...)
}

// LaunchError wraps any failure to get the server process running
type LaunchError struct {
	Service string
	Command []string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s (%s): %v", e.Service, strings.Join(e.Command, " "), e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func openLog(path string, mode LogMode) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case LogAppend:
		flags |= os.O_APPEND
	case LogTruncate, "":
		flags |= os.O_TRUNC
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
