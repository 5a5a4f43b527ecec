// Package logtail streams a growing log file to a writer until cancelled.
package logtail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval bounds how long an append can go unnoticed when no
// filesystem event arrives.
const DefaultPollInterval = 250 * time.Millisecond

// Options controls where following starts and how progress is reported
type Options struct {
	// Lines > 0 starts at the beginning of the last Lines lines
	Lines int
	// FromEnd skips existing content. Ignored when Lines > 0.
	FromEnd bool
	// PollInterval is the fallback wake-up period
	PollInterval time.Duration
	// OnWrite is called with the size of every chunk copied to the writer
	OnWrite func(n int)
}

// Follow copies path to w as it grows. It waits for the file to exist,
// restarts from the top when the file is truncated and reopens it when it
// is replaced. It returns ctx.Err() once ctx is cancelled, or the first
// read/write error.
func Follow(ctx context.Context, path string, w io.Writer, opts Options) error {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	f, err := waitForFile(ctx, abs, opts.PollInterval)
	if err != nil {
		return err
	}

	t := &tailer{path: abs, file: f, out: w, onWrite: opts.OnWrite, buf: make([]byte, 32*1024)}
	defer t.close()

	if err := t.seekStart(opts); err != nil {
		return err
	}

	// Watch the directory, not the file, so replacement is visible too.
	// Without a watcher the poll interval alone drives progress.
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(abs)); err == nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := t.drain(); err != nil {
			return err
		}
		if err := t.checkReplaced(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
		case <-ticker.C:
		}
	}
}

type tailer struct {
	path    string
	file    *os.File
	offset  int64
	out     io.Writer
	onWrite func(int)
	buf     []byte
}

func (t *tailer) seekStart(opts Options) error {
	var off int64
	switch {
	case opts.Lines > 0:
		fi, err := t.file.Stat()
		if err != nil {
			return err
		}
		off, err = LastLinesOffset(t.file, fi.Size(), opts.Lines)
		if err != nil {
			return fmt.Errorf("locate last %d lines: %w", opts.Lines, err)
		}
	case opts.FromEnd:
		fi, err := t.file.Stat()
		if err != nil {
			return err
		}
		off = fi.Size()
	}

	if _, err := t.file.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", t.path, err)
	}
	t.offset = off
	return nil
}

// drain copies everything between the current offset and EOF
func (t *tailer) drain() error {
	fi, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}
	if fi.Size() < t.offset {
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind truncated %s: %w", t.path, err)
		}
		t.offset = 0
	}

	for {
		n, err := t.file.Read(t.buf)
		if n > 0 {
			if _, werr := t.out.Write(t.buf[:n]); werr != nil {
				return fmt.Errorf("write log output: %w", werr)
			}
			t.offset += int64(n)
			if t.onWrite != nil {
				t.onWrite(n)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", t.path, err)
		}
	}
}

// checkReplaced switches to a new file at path once the old one is fully drained
func (t *tailer) checkReplaced() error {
	onDisk, err := os.Stat(t.path)
	if err != nil {
		// Removed and not yet recreated: keep the old handle.
		return nil
	}
	current, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}
	if os.SameFile(onDisk, current) {
		return nil
	}

	next, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reopen %s: %w", t.path, err)
	}
	t.file.Close()
	t.file = next
	t.offset = 0
	return t.drain()
}

func (t *tailer) close() {
	if t.file != nil {
		t.file.Close()
	}
}

func waitForFile(ctx context.Context, path string, interval time.Duration) (*os.File, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// LastLinesOffset returns the offset at which the last n lines of a file of
// the given size begin. A trailing newline terminates the last line rather
// than starting an empty one.
func LastLinesOffset(r io.ReaderAt, size int64, n int) (int64, error) {
	if n <= 0 {
		return size, nil
	}
	if size == 0 {
		return 0, nil
	}

	end := size
	last := make([]byte, 1)
	if _, err := r.ReadAt(last, end-1); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if last[0] == '\n' {
		end--
	}

	buf := make([]byte, 4096)
	found := 0
	for end > 0 {
		start := end - int64(len(buf))
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := r.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] == '\n' {
				found++
				if found == n {
					return start + int64(i) + 1, nil
				}
			}
		}
		end = start
	}
	return 0, nil
}
