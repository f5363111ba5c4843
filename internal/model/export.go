package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ResultSet is the graded output of one batch as returned by the grading
// service. It is also the document written by the exporter.
type ResultSet struct {
	TotalStudents int             `json:"total_students"`
	TotalMarks    float64         `json:"total_marks,omitempty"`
	Results       []StudentResult `json:"results"`
}

// StudentResult holds one student's graded answers. Results are ordered by
// rank ascending.
type StudentResult struct {
	StudentID     StudentID        `json:"student_id"`
	Rank          int              `json:"rank"`
	TotalScore    float64          `json:"total_score"`
	TotalPossible float64          `json:"total_possible"`
	Percentage    float64          `json:"percentage"`
	PerQuestion   []QuestionResult `json:"per_question"`
}

// QuestionResult holds per-question marks for one student.
type QuestionResult struct {
	Question      string  `json:"question"`
	MaxMarks      float64 `json:"max_marks"`
	MarksObtained float64 `json:"marks_obtained"`
	Similarity    float64 `json:"similarity"`
	Percentage    float64 `json:"percentage"`
}

// StudentID identifies a student within a result set. The grading service
// copies the id column of the responses sheet verbatim, so numeric ids
// arrive as JSON numbers.
type StudentID string

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (id *StudentID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StudentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("student_id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = StudentID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = StudentID(n.String())
	return nil
}

// Percentages returns the percentage of every student, in result order.
func (rs *ResultSet) Percentages() []float64 {
	if rs == nil {
		return nil
	}
	out := make([]float64, 0, len(rs.Results))
	for _, r := range rs.Results {
		out = append(out, r.Percentage)
	}
	return out
}
