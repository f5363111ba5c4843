package store

import (
	"database/sql"
	"strconv"
	"time"
)

// ResultInfo describes the held result set.
type ResultInfo struct {
	SessionID     string    `json:"session_id"`
	FetchedAt     time.Time `json:"fetched_at"`
	TotalStudents int       `json:"total_students"`
	TotalMarks    float64   `json:"total_marks"`
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// setMetadata upserts a key-value pair in the result_metadata table.
func setMetadata(e execer, key, value string) error {
	_, err := e.Exec(
		`INSERT INTO result_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	return getMetadata(s.db, key)
}

func getMetadata(q queryRower, key string) (string, error) {
	var value string
	err := q.QueryRow(`SELECT value FROM result_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func setInfo(e execer, info ResultInfo) error {
	pairs := []struct{ k, v string }{
		{"session_id", info.SessionID},
		{"fetched_at", info.FetchedAt.UTC().Format(time.RFC3339Nano)},
		{"total_students", strconv.Itoa(info.TotalStudents)},
		{"total_marks", strconv.FormatFloat(info.TotalMarks, 'f', -1, 64)},
	}
	for _, p := range pairs {
		if err := setMetadata(e, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// Info reads the held result set's metadata. ok is false when no result
// set is held.
func (s *Store) Info() (info ResultInfo, ok bool, err error) {
	total, err := s.GetMetadata("total_students")
	if err != nil || total == "" {
		return info, false, err
	}
	if info.TotalStudents, err = strconv.Atoi(total); err != nil {
		return info, false, err
	}
	if info.SessionID, err = s.GetMetadata("session_id"); err != nil {
		return info, false, err
	}
	fetched, err := s.GetMetadata("fetched_at")
	if err != nil {
		return info, false, err
	}
	if fetched != "" {
		if info.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched); err != nil {
			return info, false, err
		}
	}
	marks, err := s.GetMetadata("total_marks")
	if err != nil {
		return info, false, err
	}
	if marks != "" {
		if info.TotalMarks, err = strconv.ParseFloat(marks, 64); err != nil {
			return info, false, err
		}
	}
	return info, true, nil
}
