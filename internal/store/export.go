package store

import (
	"fmt"

	"github.com/pavelanni/sheetcheck/internal/model"
)

// Current rebuilds the held result set, or returns nil when none is held.
func (s *Store) Current() (*model.ResultSet, error) {
	info, ok, err := s.Info()
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if !ok {
		return nil, nil
	}

	students, err := s.Students(Filter{})
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []model.StudentResult{}
	}
	return &model.ResultSet{
		TotalStudents: info.TotalStudents,
		TotalMarks:    info.TotalMarks,
		Results:       students,
	}, nil
}
