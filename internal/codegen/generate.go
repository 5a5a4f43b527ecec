// Package codegen runs a one-time source generator guarded by a marker file.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/psantana5/svclaunch/pkg/logging"
)

// Outcome of an Ensure call
type Outcome string

const (
	Skipped   Outcome = "skipped"
	Generated Outcome = "generated"
)

// GenerateError is returned when the generator command cannot run or exits non-zero
type GenerateError struct {
	Command []string
	Err     error
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("generate sources (%s): %v", strings.Join(e.Command, " "), e.Err)
}

func (e *GenerateError) Unwrap() error {
	return e.Err
}

// Generator produces source files as a side effect of an external command.
// Presence of Marker means the sources already exist; no content or mtime
// comparison is made against the inputs.
type Generator struct {
	Marker  string
	Command []string
	Dir     string
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
	// Force runs the generator even when the marker exists
	Force  bool
	Logger *logging.Logger
}

// MarkerPath resolves Marker against Dir
func (g *Generator) MarkerPath() string {
	if filepath.IsAbs(g.Marker) || g.Dir == "" {
		return g.Marker
	}
	return filepath.Join(g.Dir, g.Marker)
}

// Ensure runs the generator unless the marker file is already present.
// The generator runs synchronously with the caller's stdio unless
// Stdout/Stderr are set.
func (g *Generator) Ensure(ctx context.Context) (Outcome, error) {
	logger := g.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	marker := g.MarkerPath()

	if !g.Force {
		present, err := exists(marker)
		if err != nil {
			return "", fmt.Errorf("check marker %s: %w", marker, err)
		}
		if present {
			logger.Debug("Generated sources present, skipping generator", logging.Fields{"marker": marker})
			return Skipped, nil
		}
	}

	if len(g.Command) == 0 {
		return "", &GenerateError{Command: g.Command, Err: errors.New("no generator command configured")}
	}

	logger.Info("Generating sources", logging.Fields{
		"marker":  marker,
		"command": strings.Join(g.Command, " "),
	})

	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	cmd.Dir = g.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = orDefault(g.Stdout, os.Stdout)
	cmd.Stderr = orDefault(g.Stderr, os.Stderr)
	if len(g.Env) > 0 {
		cmd.Env = append(os.Environ(), g.Env...)
	}

	if err := cmd.Run(); err != nil {
		return "", &GenerateError{Command: g.Command, Err: err}
	}

	if present, _ := exists(marker); !present {
		logger.Warn("Generator succeeded but marker is still missing; it will run again next time",
			logging.Fields{"marker": marker})
	}
	return Generated, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func orDefault(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
