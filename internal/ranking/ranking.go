// Package ranking maps ranks and percentages to display badges and
// performance tiers.
package ranking

import (
	"errors"
	"strconv"
	"strings"

	"github.com/pavelanni/sheetcheck/internal/model"
)

// ErrInvalidRank is returned for ranks below 1.
var ErrInvalidRank = errors.New("rank must be at least 1")

// Tier labels. These are the canonical values stored and exported; display
// text is localized separately.
const (
	LabelExcellent        = "Excellent"
	LabelGood             = "Good"
	LabelSatisfactory     = "Satisfactory"
	LabelPass             = "Pass"
	LabelNeedsImprovement = "Needs Improvement"
)

// PassThreshold is the minimum percentage counted as passing.
const PassThreshold = 50.0

var tiers = []struct {
	min  float64
	tier model.Tier
}{
	{90, model.Tier{Label: LabelExcellent, Class: "excellent"}},
	{75, model.Tier{Label: LabelGood, Class: "good"}},
	{60, model.Tier{Label: LabelSatisfactory, Class: "satisfactory"}},
	{PassThreshold, model.Tier{Label: LabelPass, Class: "pass"}},
}

var needsImprovement = model.Tier{Label: LabelNeedsImprovement, Class: "needs-improvement"}

// Tiers returns all tiers from best to worst.
func Tiers() []model.Tier {
	out := make([]model.Tier, 0, len(tiers)+1)
	for _, t := range tiers {
		out = append(out, t.tier)
	}
	return append(out, needsImprovement)
}

// PerformanceTier classifies a percentage. Lower bounds are inclusive and the
// first matching threshold wins.
func PerformanceTier(percentage float64) model.Tier {
	for _, t := range tiers {
		if percentage >= t.min {
			return t.tier
		}
	}
	return needsImprovement
}

// TierByLabel looks a tier up by its canonical label, case-insensitively.
func TierByLabel(label string) (model.Tier, bool) {
	for _, t := range Tiers() {
		if strings.EqualFold(t.Label, label) || t.Class == strings.ToLower(label) {
			return t, true
		}
	}
	return model.Tier{}, false
}

// Badge is the display marker for a rank.
type Badge struct {
	Symbol string `json:"symbol"`
	Class  string `json:"class"`
}

// RankBadge returns the medal for the top three ranks and "#<rank>" otherwise.
func RankBadge(rank int) (Badge, error) {
	switch {
	case rank < 1:
		return Badge{}, ErrInvalidRank
	case rank == 1:
		return Badge{Symbol: "🥇", Class: "gold"}, nil
	case rank == 2:
		return Badge{Symbol: "🥈", Class: "silver"}, nil
	case rank == 3:
		return Badge{Symbol: "🥉", Class: "bronze"}, nil
	default:
		return Badge{Symbol: "#" + strconv.Itoa(rank), Class: "standard"}, nil
	}
}

// ProgressBar renders a ten-cell bar, one filled cell per full 10%.
func ProgressBar(percentage float64) string {
	filled := int(percentage / 10)
	filled = max(0, min(filled, 10))
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}
