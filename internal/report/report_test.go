package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pavelanni/sheetcheck/internal/i18n"
	"github.com/pavelanni/sheetcheck/internal/model"
)

func localized(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	return i18n.ContextWithLang(context.Background(), lang)
}

func sampleSet() model.ResultSet {
	return model.ResultSet{
		TotalStudents: 4,
		TotalMarks:    10,
		Results: []model.StudentResult{
			{StudentID: "alice", Rank: 1, TotalScore: 9.5, TotalPossible: 10, Percentage: 95,
				PerQuestion: []model.QuestionResult{
					{Question: "Q1. Define TCP", MaxMarks: 10, MarksObtained: 9.5, Similarity: 0.912, Percentage: 95},
				}},
			{StudentID: "bob", Rank: 2, TotalScore: 7, TotalPossible: 10, Percentage: 70},
			{StudentID: "carol", Rank: 3, TotalScore: 5, TotalPossible: 10, Percentage: 50},
			{StudentID: "dave", Rank: 4, TotalScore: 2, TotalPossible: 10, Percentage: 20},
		},
	}
}

func TestRenderEnglish(t *testing.T) {
	ctx := localized(t, "en")
	st := &model.Stats{Students: 4, Average: 58.8, Highest: 95, Lowest: 20, PassingRate: 75}

	got := Render(ctx, sampleSet(), st)

	want := []string{
		"AI ANSWER SHEET VALIDATOR - RESULTS REPORT",
		"Total Students: 4",
		"Total Marks: 10",
		"🥇 RANK 1: alice",
		"🥈 RANK 2: bob",
		"🥉 RANK 3: carol",
		"#4 RANK 4: dave",
		"Total Score: 9.5/10 (95%)",
		"Performance: Excellent",
		"Performance: Needs Improvement",
		"  Q1. Define TCP",
		"Marks Obtained: 9.5/10 (95%)",
		"AI Similarity:  91.2%",
		"Progress:       [█████████░]",
		"Average: 58.8%",
		"Passing Rate: 75.0%",
		"4 students graded.",
	}
	for _, s := range want {
		if !strings.Contains(got, s) {
			t.Errorf("report missing %q", s)
		}
	}
}

func TestRenderNoStats(t *testing.T) {
	ctx := localized(t, "en")

	got := Render(ctx, model.ResultSet{}, nil)
	if !strings.Contains(got, "No student results to summarize.") {
		t.Error("empty report should say there is no data")
	}
	if !strings.Contains(got, "0 students graded.") {
		t.Error("empty report should count zero students")
	}
	if strings.Contains(got, "Total Marks") {
		t.Error("total marks line should be omitted when unknown")
	}
}

func TestWriteRussian(t *testing.T) {
	ctx := localized(t, "ru")

	var buf bytes.Buffer
	if err := Write(ctx, &buf, sampleSet(), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "Отлично") {
		t.Errorf("expected localized tier label in report:\n%s", buf.String())
	}
}
