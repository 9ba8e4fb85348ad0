package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/pavelanni/classbot/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db     *sql.DB
	mode   model.AttendanceMode
	logger *slog.Logger
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every new connection to :memory: is a separate, empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{
		db:     db,
		mode:   model.AttendanceAppend,
		logger: slog.Default().With("component", "store"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SetAttendanceMode selects how repeated attendance for a day is stored.
func (s *Store) SetAttendanceMode(mode model.AttendanceMode) {
	s.mode = mode
}

// migrate applies the embedded goose migrations.
func (s *Store) migrate() error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Debug("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// AddStudent registers a student. Registering an existing name is a no-op.
func (s *Store) AddStudent(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO students (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("add student %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("registered student", "name", name)
	}
	return nil
}

// ListStudents returns all student names in registration order.
func (s *Store) ListStudents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RecordAttendance writes a status for the named student on date.
// Unknown student names are ignored.
func (s *Store) RecordAttendance(ctx context.Context, date, studentName string, status model.AttendanceStatus) error {
	return s.RecordDay(ctx, date, []model.AttendanceRecord{{Student: studentName, Status: status}})
}

// RecordDay writes the statuses of one roll call in a single transaction:
// either every row is stored or none is. Unknown student names are ignored.
func (s *Store) RecordDay(ctx context.Context, date string, records []model.AttendanceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if err := s.recordOne(ctx, tx, date, r.Student, r.Status); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

func (s *Store) recordOne(ctx context.Context, tx *sql.Tx, date, studentName string, status model.AttendanceStatus) error {
	var studentID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM students WHERE name = ?`, studentName).Scan(&studentID)
	if err == sql.ErrNoRows {
		s.logger.Warn("attendance for unknown student ignored", "name", studentName, "date", date)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up student %q: %w", studentName, err)
	}

	if s.mode == model.AttendanceUpsert {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attendance WHERE date = ? AND student_id = ?`, date, studentID,
		); err != nil {
			return fmt.Errorf("replace attendance: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attendance (date, student_id, status) VALUES (?, ?, ?)`,
		date, studentID, status,
	); err != nil {
		return fmt.Errorf("record attendance for %q: %w", studentName, err)
	}
	return nil
}

// AttendanceFor returns all attendance rows written for date, oldest first.
func (s *Store) AttendanceFor(ctx context.Context, date string) ([]model.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.date, s.name, a.status
		 FROM attendance a
		 JOIN students s ON s.id = a.student_id
		 WHERE a.date = ?
		 ORDER BY a.id`, date,
	)
	if err != nil {
		return nil, fmt.Errorf("attendance for %s: %w", date, err)
	}
	defer rows.Close()
	records := []model.AttendanceRecord{}
	for rows.Next() {
		var r model.AttendanceRecord
		if err := rows.Scan(&r.Date, &r.Student, &r.Status); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// AddFeedback appends a feedback entry.
func (s *Store) AddFeedback(ctx context.Context, text, timestamp string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (text, timestamp) VALUES (?, ?)`, text, timestamp,
	)
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// AllFeedback returns every feedback entry in insertion order.
func (s *Store) AllFeedback(ctx context.Context) ([]model.FeedbackEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text, timestamp FROM feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()
	entries := []model.FeedbackEntry{}
	for rows.Next() {
		var e model.FeedbackEntry
		if err := rows.Scan(&e.Text, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
