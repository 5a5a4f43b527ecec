package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps launch history in a SQLite database
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the history database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	// WAL plus a busy timeout lets overlapping launcher invocations share the file
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		service TEXT NOT NULL,
		pid INTEGER NOT NULL,
		command TEXT NOT NULL,
		log_file TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		exit_code INTEGER,
		exit_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_launches_service_started ON launches(service, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordLaunch inserts a launch row
func (s *SQLiteStore) RecordLaunch(l *Launch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = NewLaunchID()
	}

	_, err := s.db.Exec(`
		INSERT INTO launches (id, service, pid, command, log_file, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID, l.Service, l.PID, l.Command, l.LogFile, l.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record launch: %w", err)
	}
	return nil
}

// RecordExit stores the end of a launch
func (s *SQLiteStore) RecordExit(id string, endedAt time.Time, exitCode int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE launches SET ended_at = ?, exit_code = ?, exit_reason = ? WHERE id = ?
	`, endedAt.UTC(), exitCode, reason, id)
	if err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLaunchNotFound
	}
	return nil
}

// GetLaunch returns one launch by ID
func (s *SQLiteStore) GetLaunch(id string) (*Launch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, service, pid, command, log_file, started_at, ended_at, exit_code, exit_reason
		FROM launches WHERE id = ?
	`, id)
	l, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLaunchNotFound
	}
	return l, err
}

// ListLaunches returns launches newest first
func (s *SQLiteStore) ListLaunches(service string, limit int) ([]Launch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT id, service, pid, command, log_file, started_at, ended_at, exit_code, exit_reason
		FROM launches`
	var args []interface{}
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list launches: %w", err)
	}
	defer rows.Close()

	var out []Launch
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Prune deletes launches started before the cutoff
func (s *SQLiteStore) Prune(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM launches WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune launches: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLaunch(row scanner) (*Launch, error) {
	var (
		l          Launch
		logFile    sql.NullString
		endedAt    sql.NullTime
		exitCode   sql.NullInt64
		exitReason sql.NullString
	)
	if err := row.Scan(&l.ID, &l.Service, &l.PID, &l.Command, &logFile, &l.StartedAt, &endedAt, &exitCode, &exitReason); err != nil {
		return nil, err
	}
	l.LogFile = logFile.String
	l.ExitReason = exitReason.String
	if endedAt.Valid {
		t := endedAt.Time
		l.EndedAt = &t
	}
	if exitCode.Valid {
		c := int(exitCode.Int64)
		l.ExitCode = &c
	}
	return &l, nil
}
