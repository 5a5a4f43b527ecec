// Package pidfile reads and writes the PID file that links one launcher
// invocation to the server started by the previous one.
//
// The file is best-effort shared state: there is no lock and no ownership
// check beyond liveness, so two overlapping launchers can both write it and
// the last writer wins.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNoPIDFile is returned by Read when the file does not exist
	ErrNoPIDFile = errors.New("pid file does not exist")

	// ErrInvalidPID is returned by Read when the content is not a positive integer
	ErrInvalidPID = errors.New("pid file does not contain a valid pid")
)

// File is a PID file at a fixed path
type File struct {
	path string
}

// New returns a File for path
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// Read returns the recorded PID
func (f *File) Read() (int, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("read pid file %s: %w", f.path, err)
	}

	text := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, text)
	}
	return pid, nil
}

// Write overwrites the file with pid
func (f *File) Write(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("write pid file %s: %w", f.path, err)
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pid file %s: %w", f.path, err)
	}
	return nil
}

// Stale describes what CleanupStale found
type Stale struct {
	Found   bool // a PID file existed
	PID     int  // parsed PID, zero when unparsable
	Running bool // the PID is alive and the file was left alone
	Removed bool // the file was deleted
}

// CleanupStale removes the file unless it names a live process.
// Unreadable or garbage content counts as stale.
func (f *File) CleanupStale(alive func(pid int) bool) (Stale, error) {
	pid, err := f.Read()
	switch {
	case errors.Is(err, ErrNoPIDFile):
		return Stale{}, nil
	case err == nil && alive(pid):
		return Stale{Found: true, PID: pid, Running: true}, nil
	}

	if rmErr := f.Remove(); rmErr != nil {
		return Stale{Found: true, PID: pid}, rmErr
	}
	return Stale{Found: true, PID: pid, Removed: true}, nil
}
