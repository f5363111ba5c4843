// Package stats derives class-wide statistics from a result set.
package stats

import (
	"errors"
	"math"

	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/ranking"
)

// ErrNoData is returned when there are no students to aggregate.
var ErrNoData = errors.New("no student results to aggregate")

// Aggregate computes average, highest, lowest and passing rate over the
// student percentages, as returned by (*model.ResultSet).Percentages. Every
// value is rounded to one decimal place, half away from zero. It has no
// dependency on previously computed stats.
func Aggregate(percentages []float64) (model.Stats, error) {
	if len(percentages) == 0 {
		return model.Stats{}, ErrNoData
	}

	var sum float64
	highest := math.Inf(-1)
	lowest := math.Inf(1)
	passing := 0
	tiers := make(map[string]int, len(ranking.Tiers()))
	for _, t := range ranking.Tiers() {
		tiers[t.Label] = 0
	}

	for _, p := range percentages {
		sum += p
		highest = max(highest, p)
		lowest = min(lowest, p)
		if p >= ranking.PassThreshold {
			passing++
		}
		tiers[ranking.PerformanceTier(p).Label]++
	}

	n := float64(len(percentages))
	return model.Stats{
		Students:    len(percentages),
		Average:     Round1(sum / n),
		Highest:     Round1(highest),
		Lowest:      Round1(lowest),
		PassingRate: Round1(100 * float64(passing) / n),
		Tiers:       tiers,
	}, nil
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
