// Package prompts renders the class summary prompts sent to the language
// model. Templates live in templates/ and are embedded into the binary.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/ranking"
)

// FS holds the embedded summary templates.
//
//go:embed templates/*.txt
var FS embed.FS

var (
	classResultsRegex       = regexp.MustCompile(`(?i)</?\s*class-results\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxLabelRunes = 200

// Variant selects how much detail the summary asks for.
type Variant string

const (
	// VariantBrief asks for a few sentences of headline numbers.
	VariantBrief Variant = "brief"
	// VariantStandard is the default paragraph with question difficulty.
	VariantStandard Variant = "standard"
	// VariantDetailed adds per-student lines.
	VariantDetailed Variant = "detailed"
)

var variants = []Variant{VariantBrief, VariantStandard, VariantDetailed}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a variant name is known.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// SummaryData is the template input.
type SummaryData struct {
	TotalMarks float64
	Stats      model.Stats
	Tiers      []TierLine
	Questions  []QuestionLine
	Students   []StudentLine
}

// TierLine is the number of students in one tier.
type TierLine struct {
	Label string
	Count int
}

// QuestionLine averages one question across the class.
type QuestionLine struct {
	Label         string
	AvgPercentage float64
	AvgSimilarity float64 // percent
}

// StudentLine is one student's standing.
type StudentLine struct {
	Rank       int
	ID         string
	Percentage float64
	Tier       string
}

// Load parses the summary templates from fsys, normally FS.
// Templates are parsed once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template, len(variants))
		funcs := template.FuncMap{"fmt": formatNumber}
		for _, v := range variants {
			name := "templates/summary_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildSummaryPrompt renders the summary prompt for rs and its statistics.
func BuildSummaryPrompt(variant Variant, rs model.ResultSet, st model.Stats) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewSummaryData(rs, st)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewSummaryData flattens a result set into template input. Student ids and
// question labels come from uploaded files and are sanitized.
func NewSummaryData(rs model.ResultSet, st model.Stats) SummaryData {
	data := SummaryData{TotalMarks: rs.TotalMarks, Stats: st}

	for _, t := range ranking.Tiers() {
		data.Tiers = append(data.Tiers, TierLine{Label: t.Label, Count: st.Tiers[t.Label]})
	}

	type acc struct {
		pct, sim float64
		n        int
	}
	var order []string
	sums := make(map[string]*acc)
	for _, r := range rs.Results {
		data.Students = append(data.Students, StudentLine{
			Rank:       r.Rank,
			ID:         sanitizeLabel(string(r.StudentID)),
			Percentage: r.Percentage,
			Tier:       ranking.PerformanceTier(r.Percentage).Label,
		})
		for _, q := range r.PerQuestion {
			a, ok := sums[q.Question]
			if !ok {
				a = &acc{}
				sums[q.Question] = a
				order = append(order, q.Question)
			}
			a.pct += q.Percentage
			a.sim += q.Similarity * 100
			a.n++
		}
	}
	for _, label := range order {
		a := sums[label]
		data.Questions = append(data.Questions, QuestionLine{
			Label:         sanitizeLabel(label),
			AvgPercentage: a.pct / float64(a.n),
			AvgSimilarity: a.sim / float64(a.n),
		})
	}
	return data
}

func sanitizeLabel(s string) string {
	s = classResultsRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return "[unnamed]"
	}
	if utf8.RuneCountInString(s) > maxLabelRunes {
		s = string([]rune(s)[:maxLabelRunes]) + "..."
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
