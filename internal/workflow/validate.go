package workflow

import (
	"fmt"
	"math"

	"github.com/pavelanni/sheetcheck/internal/model"
)

// ValidateResultSet checks the invariants the rest of the client relies on.
// Ranks must form a competition ranking in result order: the first rank is 1
// and every later rank either repeats the previous one (a tie) or equals the
// student's 1-based position.
func ValidateResultSet(rs model.ResultSet) error {
	if rs.TotalStudents != len(rs.Results) {
		return fmt.Errorf("%w: total_students is %d but %d results were sent",
			ErrMalformedResults, rs.TotalStudents, len(rs.Results))
	}

	seen := make(map[model.StudentID]bool, len(rs.Results))
	for i, r := range rs.Results {
		pos := i + 1
		if r.StudentID == "" {
			return fmt.Errorf("%w: result %d has no student_id", ErrMalformedResults, pos)
		}
		if seen[r.StudentID] {
			return fmt.Errorf("%w: duplicate student_id %q", ErrMalformedResults, r.StudentID)
		}
		seen[r.StudentID] = true

		switch {
		case i == 0 && r.Rank != 1:
			return fmt.Errorf("%w: first rank is %d, want 1", ErrMalformedResults, r.Rank)
		case i > 0 && r.Rank != rs.Results[i-1].Rank && r.Rank != pos:
			return fmt.Errorf("%w: student %q at position %d has rank %d",
				ErrMalformedResults, r.StudentID, pos, r.Rank)
		}

		if r.TotalPossible <= 0 {
			return fmt.Errorf("%w: student %q has total_possible %v",
				ErrMalformedResults, r.StudentID, r.TotalPossible)
		}
		if !validPercentage(r.Percentage) {
			return fmt.Errorf("%w: student %q has percentage %v",
				ErrMalformedResults, r.StudentID, r.Percentage)
		}
		for _, q := range r.PerQuestion {
			if q.MaxMarks <= 0 {
				return fmt.Errorf("%w: student %q question %q has max_marks %v",
					ErrMalformedResults, r.StudentID, q.Question, q.MaxMarks)
			}
		}
	}
	return nil
}

func validPercentage(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 100
}
