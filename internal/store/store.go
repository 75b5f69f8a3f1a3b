// Package store is the local SQLite layer: the fallback result sink when no
// Google Sheet is configured, plus teacher auth sessions and settings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/panphy/labassistant/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		student_name TEXT NOT NULL,
		class_set TEXT NOT NULL,
		question_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		max_marks INTEGER NOT NULL,
		summary TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores one result row. The results table is append-only: nothing in
// the system updates or deletes rows.
func (s *Store) Append(ctx context.Context, rec model.ResultRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (created_at, student_name, class_set, question_id, score, max_marks, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts, rec.StudentName, rec.ClassSet, rec.QuestionID, rec.Score, rec.MaxMarks, rec.Summary,
	)
	if err != nil {
		return fmt.Errorf("append result row: %w", err)
	}
	return nil
}

// Records returns all result rows, oldest first.
func (s *Store) Records(ctx context.Context) ([]model.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, student_name, class_set, question_id, score, max_marks, summary
		 FROM results ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var rec model.ResultRecord
		if err := rows.Scan(&rec.Timestamp, &rec.StudentName, &rec.ClassSet, &rec.QuestionID,
			&rec.Score, &rec.MaxMarks, &rec.Summary); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}
