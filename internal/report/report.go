// Package report renders a graded result set as a plain-text report for
// terminals and the /session/report endpoint.
package report

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pavelanni/sheetcheck/internal/i18n"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/ranking"
)

const width = 80

var (
	heavyRule = strings.Repeat("=", width)
	lightRule = strings.Repeat("-", width)
)

// Write renders rs to w in the language carried by ctx. st may be nil when
// there are no statistics for the set.
func Write(ctx context.Context, w io.Writer, rs model.ResultSet, st *model.Stats) error {
	_, err := io.WriteString(w, Render(ctx, rs, st))
	return err
}

// Render returns the report as a string.
func Render(ctx context.Context, rs model.ResultSet, st *model.Stats) string {
	var sb strings.Builder
	line := func(s string) {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}

	line(heavyRule)
	line(center(i18n.T(ctx, "ReportTitle")))
	line(heavyRule)
	line("")
	line(i18n.Td(ctx, "TotalStudents", map[string]any{"Count": rs.TotalStudents}))
	if rs.TotalMarks > 0 {
		line(i18n.Td(ctx, "TotalMarks", map[string]any{"Marks": num(rs.TotalMarks)}))
	}
	line("")
	line(heavyRule)

	for _, r := range rs.Results {
		writeStudent(ctx, &sb, r)
	}

	line("")
	line(i18n.T(ctx, "StatsHeading"))
	line(lightRule)
	if st == nil {
		line(i18n.T(ctx, "NoData"))
	} else {
		line(i18n.Td(ctx, "StatAverage", map[string]any{"Value": fixed1(st.Average)}))
		line(i18n.Td(ctx, "StatHighest", map[string]any{"Value": fixed1(st.Highest)}))
		line(i18n.Td(ctx, "StatLowest", map[string]any{"Value": fixed1(st.Lowest)}))
		line(i18n.Td(ctx, "StatPassingRate", map[string]any{"Value": fixed1(st.PassingRate)}))
	}

	line("")
	line("✅ " + i18n.T(ctx, "GradingComplete") + " " + i18n.Tp(ctx, "StudentsGraded", len(rs.Results)))
	line(heavyRule)
	return sb.String()
}

func writeStudent(ctx context.Context, sb *strings.Builder, r model.StudentResult) {
	symbol := "🏆"
	if badge, err := ranking.RankBadge(r.Rank); err == nil {
		symbol = badge.Symbol
	}

	sb.WriteString("\n" + symbol + " ")
	sb.WriteString(i18n.Td(ctx, "RankHeading", map[string]any{"Rank": r.Rank, "StudentID": string(r.StudentID)}))
	sb.WriteString("\n" + lightRule + "\n")
	sb.WriteString(i18n.Td(ctx, "TotalScore", map[string]any{
		"Score":      num(r.TotalScore),
		"Possible":   num(r.TotalPossible),
		"Percentage": num(r.Percentage),
	}) + "\n")
	tier := ranking.PerformanceTier(r.Percentage)
	sb.WriteString(i18n.Td(ctx, "Performance", map[string]any{"Tier": i18n.TierLabel(ctx, tier.Label)}) + "\n")

	sb.WriteString("\n" + i18n.T(ctx, "QuestionBreakdown") + "\n")
	sb.WriteString(lightRule + "\n")
	for _, q := range r.PerQuestion {
		sb.WriteString("\n  " + q.Question + "\n")
		sb.WriteString("    " + i18n.Td(ctx, "MarksObtained", map[string]any{
			"Marks":      num(q.MarksObtained),
			"Max":        num(q.MaxMarks),
			"Percentage": num(q.Percentage),
		}) + "\n")
		sb.WriteString("    " + i18n.Td(ctx, "Similarity", map[string]any{"Similarity": fixed1(q.Similarity * 100)}) + "\n")
		sb.WriteString("    " + i18n.Td(ctx, "Progress", map[string]any{"Bar": ranking.ProgressBar(q.Percentage)}) + "\n")
	}
	sb.WriteString("\n" + heavyRule + "\n")
}

func center(s string) string {
	pad := (width - len([]rune(s))) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fixed1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
