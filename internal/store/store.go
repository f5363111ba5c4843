// Package store keeps the result set currently held by the client in an
// in-memory SQLite database, so it can be filtered and looked up by student.
// Nothing is written to disk; replacing the result set discards the old one.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/ranking"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a student is not in the held result set.
var ErrNotFound = errors.New("student not found")

type Store struct {
	db *sql.DB
}

// Filter narrows Students. Zero values disable a condition.
type Filter struct {
	Tier          string  // canonical tier label
	MinPercentage float64 // inclusive
}

func New() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
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
	CREATE TABLE IF NOT EXISTS result_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		position INTEGER PRIMARY KEY,
		student_id TEXT NOT NULL UNIQUE,
		rank INTEGER NOT NULL,
		total_score REAL NOT NULL,
		total_possible REAL NOT NULL,
		percentage REAL NOT NULL,
		tier TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS question_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		max_marks REAL NOT NULL,
		marks_obtained REAL NOT NULL,
		similarity REAL NOT NULL,
		percentage REAL NOT NULL,
		FOREIGN KEY (student_id) REFERENCES students(student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_students_tier ON students(tier);
	CREATE INDEX IF NOT EXISTS idx_question_results_student ON question_results(student_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Replace swaps the held result set for rs in one transaction.
func (s *Store) Replace(sessionID string, rs model.ResultSet, fetchedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"question_results", "students", "result_metadata"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, r := range rs.Results {
		_, err := tx.Exec(
			`INSERT INTO students (position, student_id, rank, total_score, total_possible, percentage, tier)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, string(r.StudentID), r.Rank, r.TotalScore, r.TotalPossible, r.Percentage,
			ranking.PerformanceTier(r.Percentage).Label,
		)
		if err != nil {
			return fmt.Errorf("insert student %q: %w", r.StudentID, err)
		}
		for j, q := range r.PerQuestion {
			_, err := tx.Exec(
				`INSERT INTO question_results (student_id, position, question, max_marks, marks_obtained, similarity, percentage)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				string(r.StudentID), j, q.Question, q.MaxMarks, q.MarksObtained, q.Similarity, q.Percentage,
			)
			if err != nil {
				return fmt.Errorf("insert question %q for %q: %w", q.Question, r.StudentID, err)
			}
		}
	}

	info := ResultInfo{
		SessionID:     sessionID,
		FetchedAt:     fetchedAt,
		TotalStudents: rs.TotalStudents,
		TotalMarks:    rs.TotalMarks,
	}
	if err := setInfo(tx, info); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return tx.Commit()
}

// Clear drops the held result set.
func (s *Store) Clear() error {
	for _, table := range []string{"question_results", "students", "result_metadata"} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Students returns the held students in rank order.
func (s *Store) Students(f Filter) ([]model.StudentResult, error) {
	query := `SELECT student_id, rank, total_score, total_possible, percentage FROM students WHERE 1=1`
	var args []any
	if f.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, f.Tier)
	}
	if f.MinPercentage > 0 {
		query += ` AND percentage >= ?`
		args = append(args, f.MinPercentage)
	}
	query += ` ORDER BY position`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []model.StudentResult
	for rows.Next() {
		var r model.StudentResult
		if err := rows.Scan(&r.StudentID, &r.Rank, &r.TotalScore, &r.TotalPossible, &r.Percentage); err != nil {
			return nil, err
		}
		students = append(students, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range students {
		qs, err := s.questions(students[i].StudentID)
		if err != nil {
			return nil, err
		}
		students[i].PerQuestion = qs
	}
	return students, nil
}

// Student returns one held student.
func (s *Store) Student(id model.StudentID) (model.StudentResult, error) {
	var r model.StudentResult
	err := s.db.QueryRow(
		`SELECT student_id, rank, total_score, total_possible, percentage FROM students WHERE student_id = ?`, string(id),
	).Scan(&r.StudentID, &r.Rank, &r.TotalScore, &r.TotalPossible, &r.Percentage)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.PerQuestion, err = s.questions(id)
	return r, err
}

func (s *Store) questions(id model.StudentID) ([]model.QuestionResult, error) {
	rows, err := s.db.Query(
		`SELECT question, max_marks, marks_obtained, similarity, percentage
		 FROM question_results WHERE student_id = ? ORDER BY position`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	qs := []model.QuestionResult{}
	for rows.Next() {
		var q model.QuestionResult
		if err := rows.Scan(&q.Question, &q.MaxMarks, &q.MarksObtained, &q.Similarity, &q.Percentage); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// TierCounts returns how many held students fall in each tier.
func (s *Store) TierCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT tier, COUNT(*) FROM students GROUP BY tier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}
