package practice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// fixed-width UTC timestamps so that start_time sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists sessions in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at dataSourceName
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
    CREATE TABLE IF NOT EXISTS practice_sessions (
        id TEXT PRIMARY KEY,
        instrument_type TEXT NOT NULL,
        status TEXT NOT NULL,
        start_time TEXT NOT NULL,
        end_time TEXT,
        duration_minutes INTEGER NOT NULL DEFAULT 0,
        notes_played INTEGER NOT NULL DEFAULT 0,
        correct_notes INTEGER NOT NULL DEFAULT 0,
        accuracy_percentage REAL NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_practice_sessions_status ON practice_sessions(status);
    CREATE INDEX IF NOT EXISTS idx_practice_sessions_start ON practice_sessions(start_time);
    `)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO practice_sessions
        (id, instrument_type, status, start_time, end_time, duration_minutes,
         notes_played, correct_notes, accuracy_percentage)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.InstrumentType, string(sess.Status), sess.StartTime.UTC().Format(timeLayout),
		formatEndTime(sess.EndTime), sess.DurationMinutes,
		sess.NotesPlayed, sess.CorrectNotes, sess.AccuracyPercentage,
	)
	if err != nil {
		return fmt.Errorf("error inserting session: %w", err)
	}
	return nil
}

const sessionColumns = `id, instrument_type, status, start_time, end_time, duration_minutes,
           notes_played, correct_notes, accuracy_percentage`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
    SELECT `+sessionColumns+`
    FROM practice_sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
    SELECT `+sessionColumns+`
    FROM practice_sessions ORDER BY start_time DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess    Session
		status  string
		start   string
		endTime sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.InstrumentType, &status, &start, &endTime,
		&sess.DurationMinutes, &sess.NotesPlayed, &sess.CorrectNotes, &sess.AccuracyPercentage)
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}

	sess.Status = Status(status)
	if sess.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	if endTime.Valid {
		t, err := time.Parse(time.RFC3339Nano, endTime.String)
		if err != nil {
			return nil, fmt.Errorf("error parsing end time: %w", err)
		}
		sess.EndTime = &t
	}
	return &sess, nil
}

func (s *SQLiteStore) Update(ctx context.Context, sess *Session) error {
	res, err := s.db.ExecContext(ctx, `
    UPDATE practice_sessions SET
        status = ?, end_time = ?, duration_minutes = ?,
        notes_played = ?, correct_notes = ?, accuracy_percentage = ?
    WHERE id = ?`,
		string(sess.Status), formatEndTime(sess.EndTime), sess.DurationMinutes,
		sess.NotesPlayed, sess.CorrectNotes, sess.AccuracyPercentage, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	return nil
}

func formatEndTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
