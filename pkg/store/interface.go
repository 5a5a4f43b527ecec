package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLaunchNotFound is returned when a launch ID is unknown
var ErrLaunchNotFound = errors.New("launch not found")

// Launch is one server start performed by the launcher
type Launch struct {
	ID         string     `json:"id"`
	Service    string     `json:"service"`
	PID        int        `json:"pid"`
	Command    string     `json:"command"`
	LogFile    string     `json:"log_file,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	ExitReason string     `json:"exit_reason,omitempty"`
}

// NewLaunchID returns a fresh launch identifier
func NewLaunchID() string {
	return uuid.NewString()
}

// Store defines the interface for launch history
type Store interface {
	// RecordLaunch inserts a launch. ID is generated when empty.
	RecordLaunch(l *Launch) error

	// RecordExit sets the end of a launch
	RecordExit(id string, endedAt time.Time, exitCode int, reason string) error

	// GetLaunch returns a launch by ID
	GetLaunch(id string) (*Launch, error)

	// ListLaunches returns launches newest first. Empty service means all.
	// limit <= 0 means no limit.
	ListLaunches(service string, limit int) ([]Launch, error)

	// Prune deletes launches started before the cutoff and returns how many went
	Prune(before time.Time) (int64, error)

	Close() error
}
