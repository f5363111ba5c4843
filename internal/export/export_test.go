package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/sheetcheck/internal/model"
)

var exportTime = time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

func sampleResults() *model.ResultSet {
	return &model.ResultSet{
		TotalStudents: 1,
		TotalMarks:    10,
		Results: []model.StudentResult{{
			StudentID:     "S001",
			Rank:          1,
			TotalScore:    9,
			TotalPossible: 10,
			Percentage:    90,
			PerQuestion: []model.QuestionResult{
				{Question: "Q1", MaxMarks: 10, MarksObtained: 9, Similarity: 0.83, Percentage: 90},
			},
		}},
	}
}

func TestFilenameUsesUTCDate(t *testing.T) {
	if got, want := Filename(exportTime), "grading-results-2026-03-15.json"; got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestResultsNil(t *testing.T) {
	a, ok := Results(nil, exportTime)
	if ok {
		t.Fatal("Results(nil) should report false")
	}
	if a.Filename != "" || len(a.Data) != 0 {
		t.Errorf("Results(nil) = %+v, want zero artifact", a)
	}
}

func TestResultsEmptySet(t *testing.T) {
	a, ok := Results(&model.ResultSet{}, exportTime)
	if !ok {
		t.Fatal("Results(empty) should produce an artifact")
	}
	var doc map[string]any
	if err := json.Unmarshal(a.Data, &doc); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if _, ok := doc["results"].([]any); !ok {
		t.Errorf("results should encode as an empty array, got %v", doc["results"])
	}
}

func TestResultsWholeObject(t *testing.T) {
	rs := sampleResults()
	a, ok := Results(rs, exportTime)
	if !ok {
		t.Fatal("Results should produce an artifact")
	}
	if a.ContentType != ContentType {
		t.Errorf("ContentType = %q", a.ContentType)
	}

	var got model.ResultSet
	if err := json.Unmarshal(a.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TotalStudents != 1 || got.TotalMarks != 10 {
		t.Errorf("header fields lost: %+v", got)
	}
	if len(got.Results) != 1 || len(got.Results[0].PerQuestion) != 1 {
		t.Fatalf("nested results lost: %+v", got)
	}
	if got.Results[0].PerQuestion[0].Similarity != 0.83 {
		t.Errorf("similarity = %v, want 0.83", got.Results[0].PerQuestion[0].Similarity)
	}
}

func TestSave(t *testing.T) {
	a, _ := Results(sampleResults(), exportTime)
	dir := t.TempDir()

	path, err := a.Save(dir)
	if err != nil {
		t.Fatalf("Save(dir): %v", err)
	}
	if filepath.Base(path) != a.Filename {
		t.Errorf("Save(dir) wrote %q, want generated name", path)
	}

	explicit := filepath.Join(dir, "out.json")
	path, err = a.Save(explicit)
	if err != nil {
		t.Fatalf("Save(file): %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(a.Data) {
		t.Error("saved file differs from artifact data")
	}
}
